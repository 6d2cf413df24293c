package openapi

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestGenerate(t *testing.T) {
	doc := Generate()

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("version: got %q", doc.OpenAPI)
	}
	if doc.Paths.Len() == 0 {
		t.Fatal("no paths generated")
	}
	for _, path := range []string{"/user/register", "/user/login", "/user_token/add", "/token_uri/add"} {
		if doc.Paths.Value(path) == nil {
			t.Errorf("missing path %s", path)
		}
	}
	if doc.Components.SecuritySchemes["apiToken"] == nil {
		t.Error("missing apiToken security scheme")
	}
	if doc.Components.SecuritySchemes["sessionToken"] == nil {
		t.Error("missing sessionToken security scheme")
	}

	// Path params must be declared on parameterized routes.
	item := doc.Paths.Value("/delete/{user}")
	if item == nil || item.Delete == nil {
		t.Fatal("missing DELETE /delete/{user}")
	}
	if len(item.Delete.Parameters) != 1 || item.Delete.Parameters[0].Value.Name != "user" {
		t.Errorf("path params: got %+v", item.Delete.Parameters)
	}
}

func TestServeSpec(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHandler().ServeSpec(rr, httptest.NewRequest("GET", "/openapi.json", nil))

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: got %q", ct)
	}
	var doc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.OpenAPI != "3.1.0" {
		t.Errorf("version: got %q", doc.OpenAPI)
	}
	if _, ok := doc.Paths["/user/login"]; !ok {
		t.Error("serialized document missing /user/login")
	}
}
