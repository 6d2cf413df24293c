package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gatehouse/gatehouse/internal/model"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/token"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// Principal is the authenticated identity attached to the request context
// by the auth gate.
type Principal struct {
	ID       int64
	Username string
}

// AuthGate returns the middleware that enforces authorization for requests
// that present credentials. Whitelisted paths pass untouched regardless of
// header content, and requests without an Authorization header pass through
// for route-level handling. A bearer that fails to decode, or decodes to a
// subject missing from the user store, aborts the chain with a forbidden
// JSON body before the handler runs.
func AuthGate(st *store.Store, codec *token.Codec, whitelist []string, logger *slog.Logger) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(whitelist))
	for _, p := range whitelist {
		allowed[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[decodedPath(r)]; ok {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := codec.VerifyHeader(authHeader)
			if err != nil {
				logger.Error("auth gate: bearer decode failed",
					"authorization", authHeader, "error", err)
				writeForbidden(w, "invalid auth")
				return
			}

			user, err := st.GetUserByID(r.Context(), claims.ID)
			if err != nil {
				logger.Error("auth gate: subject lookup failed",
					"authorization", authHeader, "subject", claims.ID, "error", err)
				writeForbidden(w, "invalid auth")
				return
			}

			ctx := context.WithValue(r.Context(), AuthPrincipalKey, &Principal{
				ID:       user.ID,
				Username: user.Name,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil for unauthenticated requests.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func writeForbidden(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(model.Failed(msg))
}
