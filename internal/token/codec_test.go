package token

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func testSecret() string {
	return base64.StdEncoding.EncodeToString([]byte("test-secret-key-for-sessions"))
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	codec := NewCodec(testSecret(), "Token ")

	before := time.Now()
	tok, err := codec.Issue(42, "alice", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := codec.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.ID != 42 {
		t.Errorf("ID: got %d, want 42", claims.ID)
	}
	if claims.Username != "alice" {
		t.Errorf("Username: got %q, want %q", claims.Username, "alice")
	}

	wantExp := before.Add(time.Hour)
	gotExp := claims.ExpiresAt.Time
	if diff := gotExp.Sub(wantExp); diff < -time.Second || diff > time.Second {
		t.Errorf("ExpiresAt: got %v, want %v (±1s)", gotExp, wantExp)
	}
}

func TestVerifyExpired(t *testing.T) {
	codec := NewCodec(testSecret(), "Token ")

	tok, err := codec.IssueWithExpiry(1, "bob", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("IssueWithExpiry: %v", err)
	}

	_, err = codec.Verify(tok)
	if !errors.Is(err, ErrExpiredSignature) {
		t.Fatalf("expected ErrExpiredSignature, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	codec := NewCodec(testSecret(), "Token ")

	for _, bad := range []string{"", "not-a-token", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.e30."} {
		if _, err := codec.Verify(bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q): expected ErrInvalidToken, got %v", bad, err)
		}
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewCodec(base64.StdEncoding.EncodeToString([]byte("one-secret")), "Token ")
	verifier := NewCodec(base64.StdEncoding.EncodeToString([]byte("another-secret")), "Token ")

	tok, err := issuer.Issue(7, "carol", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := verifier.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestIssueBadSecret(t *testing.T) {
	codec := NewCodec("%%% not base64 %%%", "Token ")

	if _, err := codec.Issue(1, "x", time.Hour); !errors.Is(err, ErrBadSecret) {
		t.Fatalf("expected ErrBadSecret, got %v", err)
	}
}

func TestExtractBearer(t *testing.T) {
	codec := NewCodec(testSecret(), "Token ")

	raw, err := codec.ExtractBearer("Token abc.def.ghi")
	if err != nil {
		t.Fatalf("ExtractBearer: %v", err)
	}
	if raw != "abc.def.ghi" {
		t.Errorf("got %q, want %q", raw, "abc.def.ghi")
	}

	for _, bad := range []string{"", "Bearer abc", "token abc", "abc"} {
		if _, err := codec.ExtractBearer(bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ExtractBearer(%q): expected ErrInvalidToken, got %v", bad, err)
		}
	}
}

func TestVerifyHeader(t *testing.T) {
	codec := NewCodec(testSecret(), "Token ")

	tok, err := codec.Issue(9, "dave", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := codec.VerifyHeader("Token " + tok)
	if err != nil {
		t.Fatalf("VerifyHeader: %v", err)
	}
	if claims.ID != 9 {
		t.Errorf("ID: got %d, want 9", claims.ID)
	}
}
