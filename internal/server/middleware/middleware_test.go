package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/model"
	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/token"
)

func newTestDeps(t *testing.T) (*store.Store, *token.Codec, *slog.Logger) {
	t.Helper()
	st, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ""})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	codec := token.NewCodec(
		base64.StdEncoding.EncodeToString([]byte("middleware-test-secret")), "Token ")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return st, codec, logger
}

func seedUser(t *testing.T, st *store.Store, name string) int64 {
	t.Helper()
	u := model.User{Name: name, Phone: "13800000000", Password: store.HashPassword("pw"), IsActive: true}
	if err := st.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	got, err := st.GetUserByName(context.Background(), name)
	if err != nil {
		t.Fatalf("GetUserByName: %v", err)
	}
	return got.ID
}

// ---------------------------------------------------------------------------
// RequestID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDGenerated(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("expected non-empty request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/x", nil))

	if id := rr.Header().Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("expected UUID-length request ID, got %q", id)
	}
}

func TestRequestIDPreservesClientID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "trace-123" {
		t.Errorf("got %q, want trace-123", got)
	}
}

// ---------------------------------------------------------------------------
// APIToken middleware tests
// ---------------------------------------------------------------------------

func apiTokenFixture(t *testing.T, st *store.Store, userID, uri string, expire time.Time) string {
	t.Helper()
	ctx := context.Background()
	tok, err := st.CreateUserToken(ctx, userID)
	if err != nil {
		t.Fatalf("CreateUserToken: %v", err)
	}
	owned, err := st.GetUserTokenByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserTokenByUserID: %v", err)
	}
	g := model.TokenGrant{UserTokenID: owned.ID, URI: uri, Expire: expire, IsActive: true}
	if err := st.CreateGrant(ctx, &g); err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}
	return tok.Token
}

func TestAPITokenInjectsAuthorization(t *testing.T) {
	st, codec, logger := newTestDeps(t)
	opaque := apiTokenFixture(t, st, "42", "/api/v1/widgets", time.Now().Add(time.Hour))

	resolver := service.NewResolver(st, codec, logger)

	var seen string
	handler := APIToken(resolver, codec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/widgets", nil)
	req.Header.Set(APITokenHeader, opaque)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.HasPrefix(seen, "Token ") {
		t.Fatalf("expected injected bearer header, got %q", seen)
	}
	claims, err := codec.VerifyHeader(seen)
	if err != nil {
		t.Fatalf("VerifyHeader: %v", err)
	}
	if claims.ID != 42 {
		t.Errorf("subject: got %d, want 42", claims.ID)
	}
}

func TestAPITokenExpiredGrantLeavesHeaderAlone(t *testing.T) {
	st, codec, logger := newTestDeps(t)
	opaque := apiTokenFixture(t, st, "42", "/api/v1/widgets", time.Now().Add(-time.Minute))

	resolver := service.NewResolver(st, codec, logger)

	var seen string
	handler := APIToken(resolver, codec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/widgets", nil)
	req.Header.Set(APITokenHeader, opaque)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "" {
		t.Fatalf("expected no injected header for an expired grant, got %q", seen)
	}
}

func TestAPITokenAbsentHeaderIsNoOp(t *testing.T) {
	st, codec, logger := newTestDeps(t)
	resolver := service.NewResolver(st, codec, logger)

	var seen string
	handler := APIToken(resolver, codec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/widgets", nil)
	req.Header.Set("Authorization", "Token original")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "Token original" {
		t.Fatalf("original Authorization must be untouched, got %q", seen)
	}
}

// ---------------------------------------------------------------------------
// Audit middleware tests
// ---------------------------------------------------------------------------

func TestAuditWritesRequestAndResponseRecords(t *testing.T) {
	st, codec, logger := newTestDeps(t)
	userID := seedUser(t, st, "alice")

	bearer, err := codec.Issue(userID, "alice", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	body := `{"hello":"world"}`
	handler := Audit(st, codec, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ := io.ReadAll(r.Body)
		if string(got) != body {
			t.Errorf("handler saw body %q, want %q", got, body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"code":200}`))
	}))

	req := httptest.NewRequest("POST", "/user/info?verbose=1", strings.NewReader(body))
	req.Header.Set("Authorization", "Token "+bearer)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Body.String() != `{"code":200}` {
		t.Fatalf("client body: got %q", rr.Body.String())
	}

	logs, err := st.ListAuditLogs(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d audit rows, want 2", len(logs))
	}

	// Newest first: rsp then req.
	rsp, reqLog := logs[0], logs[1]
	if reqLog.Kind != model.AuditKindRequest || rsp.Kind != model.AuditKindResponse {
		t.Fatalf("kinds: got %q/%q", reqLog.Kind, rsp.Kind)
	}
	if reqLog.Body != body {
		t.Errorf("request record body: got %q", reqLog.Body)
	}
	if reqLog.Query != "verbose=1" {
		t.Errorf("request record query: got %q", reqLog.Query)
	}
	if rsp.Body != `{"code":200}` {
		t.Errorf("response record body: got %q", rsp.Body)
	}
	if reqLog.UserID == "" || rsp.UserID == "" {
		t.Error("authenticated subject id missing from audit records")
	}
}

func TestAuditResponseRoundTrip(t *testing.T) {
	st, codec, logger := newTestDeps(t)

	for _, size := range []int{0, 1, 4096, 4097, 10000} {
		payload := strings.Repeat("x", size)
		handler := Audit(st, codec, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(payload))
		}))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/x", nil))

		if rr.Code != http.StatusCreated {
			t.Fatalf("size %d: status got %d", size, rr.Code)
		}
		if rr.Body.String() != payload {
			t.Fatalf("size %d: client body corrupted", size)
		}

		logs, err := st.ListAuditLogs(context.Background(), 1)
		if err != nil {
			t.Fatalf("ListAuditLogs: %v", err)
		}
		if logs[0].Body != payload {
			t.Fatalf("size %d: persisted body differs from what the client received", size)
		}
	}
}

func TestAuditCapsRequestBodyPeek(t *testing.T) {
	st, codec, logger := newTestDeps(t)

	big := strings.Repeat("y", 4096+512)
	handler := Audit(st, codec, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ := io.ReadAll(r.Body)
		if len(got) != len(big) {
			t.Errorf("handler saw %d body bytes, want %d", len(got), len(big))
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/x", strings.NewReader(big)))

	logs, err := st.ListAuditLogs(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	reqLog := logs[1]
	if len(reqLog.Body) != 4096 {
		t.Fatalf("peeked body: got %d bytes, want 4096", len(reqLog.Body))
	}
}

func TestAuditAnonymousRequestHasEmptySubject(t *testing.T) {
	st, codec, logger := newTestDeps(t)

	handler := Audit(st, codec, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))

	logs, _ := st.ListAuditLogs(context.Background(), 2)
	for _, l := range logs {
		if l.UserID != "" {
			t.Errorf("expected empty subject for anonymous traffic, got %q", l.UserID)
		}
	}
}

// ---------------------------------------------------------------------------
// AuthGate middleware tests
// ---------------------------------------------------------------------------

var whitelist = []string{"/user/register", "/user/login"}

func TestAuthGateWhitelistBypassesGarbageHeader(t *testing.T) {
	st, codec, logger := newTestDeps(t)

	handler := AuthGate(st, codec, whitelist, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("handler body"))
	}))

	req := httptest.NewRequest("POST", "/user/login", nil)
	req.Header.Set("Authorization", "Token garbage")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "handler body" {
		t.Fatalf("whitelisted path must pass untouched: %d %q", rr.Code, rr.Body.String())
	}
}

func TestAuthGateAnonymousPassesThrough(t *testing.T) {
	st, codec, logger := newTestDeps(t)

	handler := AuthGate(st, codec, whitelist, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetPrincipal(r.Context()) != nil {
			t.Error("anonymous request must not carry a principal")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/user/all", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("anonymous request: got %d", rr.Code)
	}
}

func TestAuthGateRejectsBadToken(t *testing.T) {
	st, codec, logger := newTestDeps(t)

	handlerRan := false
	handler := AuthGate(st, codec, whitelist, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
	}))

	req := httptest.NewRequest("GET", "/user/all", nil)
	req.Header.Set("Authorization", "Token not.a.jwt")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if handlerRan {
		t.Error("handler must not run for a rejected request")
	}
	assertForbidden(t, rr)
}

func TestAuthGateRejectsDeletedSubject(t *testing.T) {
	st, codec, logger := newTestDeps(t)

	// Valid bearer for a subject missing from the user store.
	bearer, err := codec.Issue(9999, "ghost", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	handler := AuthGate(st, codec, whitelist, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for a deleted subject")
	}))

	req := httptest.NewRequest("GET", "/user/all", nil)
	req.Header.Set("Authorization", "Token "+bearer)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assertForbidden(t, rr)
}

func TestAuthGateAcceptsValidSubject(t *testing.T) {
	st, codec, logger := newTestDeps(t)
	userID := seedUser(t, st, "alice")

	bearer, err := codec.Issue(userID, "alice", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	handler := AuthGate(st, codec, whitelist, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := GetPrincipal(r.Context())
		if p == nil {
			t.Fatal("expected a principal in context")
		}
		if p.ID != userID || p.Username != "alice" {
			t.Errorf("principal: got %+v", p)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("original body"))
	}))

	req := httptest.NewRequest("GET", "/user/all", nil)
	req.Header.Set("Authorization", "Token "+bearer)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "original body" {
		t.Fatalf("valid subject: got %d %q", rr.Code, rr.Body.String())
	}
}

func assertForbidden(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: got %q", ct)
	}
	var body model.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Code != 0 || body.Msg != "invalid auth" {
		t.Errorf(`body: got code=%d msg=%q, want code=0 msg="invalid auth"`, body.Code, body.Msg)
	}
}
