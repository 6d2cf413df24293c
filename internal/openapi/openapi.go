package openapi

import (
	"encoding/json"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

// Handler serves the OpenAPI document for the mounted routes.
type Handler struct {
	doc *openapi3.T
}

// NewHandler builds the document once; the route set is fixed at startup.
func NewHandler() *Handler {
	return &Handler{doc: Generate()}
}

// ServeSpec writes the document as JSON.
func (h *Handler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.doc)
}

// Generate produces the OpenAPI 3.1 document describing the user,
// user-token, and grant routes.
func Generate() *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Gatehouse API",
			Description: "User accounts, opaque API tokens, per-URI grants, and the audit trail behind them.",
			Version:     "1.0.0",
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["sessionToken"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:        "apiKey",
			In:          "header",
			Name:        "Authorization",
			Description: `Signed session token prefixed with "Token ".`,
		},
	}
	doc.Components.SecuritySchemes["apiToken"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:        "apiKey",
			In:          "header",
			Name:        "X-API-Token-Id",
			Description: "Long-lived opaque API token; upgraded per-URI to a session token.",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{"sessionToken": {}},
		{"apiToken": {}},
	}

	doc.Components.Schemas["APIResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"code": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
				"msg":  &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"data": &openapi3.SchemaRef{Value: &openapi3.Schema{}},
			},
		},
	}

	doc.Paths = openapi3.NewPaths()
	for _, rt := range routes() {
		addRoute(doc, rt)
	}
	return doc
}

type route struct {
	method  string
	path    string
	summary string
	hasBody bool
}

func routes() []route {
	return []route{
		{"POST", "/user/register", "Register a new user", true},
		{"POST", "/user/login", "Log in by phone and password", true},
		{"GET", "/user/info", "Get the caller's profile", false},
		{"GET", "/user/all", "List all users", false},
		{"DELETE", "/delete/{user}", "Delete a user by name", false},
		{"PUT", "/update_name/{user}/{phone}", "Update a user's phone number", false},
		{"POST", "/update_user_info", "Update a user's profile", true},
		{"POST", "/get_user", "Find a user by name", true},
		{"GET", "/user_token/all", "List all opaque API tokens", false},
		{"GET", "/user_token/info/{userID}", "Get a user's opaque API token", false},
		{"POST", "/user_token/add", "Create an opaque API token", true},
		{"PUT", "/user_token/update", "Enable or disable an opaque API token", true},
		{"DELETE", "/user_token/delete/{userID}", "Delete a user's opaque API token", false},
		{"GET", "/token_uri/all", "List all grants", false},
		{"GET", "/token_uri/uri_list/{tokenID}", "List grants for one token", false},
		{"POST", "/token_uri/add", "Create a grant", true},
		{"PUT", "/token_uri/update_status", "Enable or disable a grant", true},
		{"PUT", "/token_uri/update_expire", "Change a grant's expiry", true},
		{"DELETE", "/token_uri/delete/{id}", "Delete a grant", false},
	}
}

func addRoute(doc *openapi3.T, rt route) {
	op := openapi3.NewOperation()
	op.Summary = rt.summary
	op.Responses = openapi3.NewResponses()

	envelope := &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: strPtr("Uniform response envelope"),
			Content: openapi3.Content{
				"application/json": &openapi3.MediaType{
					Schema: &openapi3.SchemaRef{Ref: "#/components/schemas/APIResponse"},
				},
			},
		},
	}
	op.Responses.Set("200", envelope)
	op.Responses.Set("403", envelope)

	if rt.hasBody {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: true,
				Content: openapi3.Content{
					"application/json": &openapi3.MediaType{
						Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
					},
				},
			},
		}
	}

	for _, name := range pathParams(rt.path) {
		p := openapi3.NewPathParameter(name)
		p.Required = true
		p.Schema = &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{Value: p})
	}

	item := doc.Paths.Value(rt.path)
	if item == nil {
		item = &openapi3.PathItem{}
		doc.Paths.Set(rt.path, item)
	}
	item.SetOperation(rt.method, op)
}

func pathParams(path string) []string {
	var params []string
	for i := 0; i < len(path); i++ {
		if path[i] == '{' {
			j := i + 1
			for j < len(path) && path[j] != '}' {
				j++
			}
			params = append(params, path[i+1:j])
			i = j
		}
	}
	return params
}

func strPtr(s string) *string { return &s }
