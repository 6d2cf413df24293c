package middleware

import (
	"net/http"
	"time"

	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/token"
)

// APITokenHeader is the inbound header carrying an opaque API token.
const APITokenHeader = "X-API-Token-Id"

// APIToken returns the middleware that lets trusted external systems call
// protected endpoints with a static opaque token. When the token holds a
// live grant for the request path, a session token is minted on the
// caller's behalf and injected into the Authorization header as if the
// caller had presented it. Absence of a resolvable grant leaves the
// request untouched; this middleware never rejects anything.
func APIToken(resolver *service.Resolver, codec *token.Codec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			opaque := r.Header.Get(APITokenHeader)
			if opaque == "" {
				next.ServeHTTP(w, r)
				return
			}

			minted, ok := resolver.Resolve(r.Context(), opaque, r.URL.EscapedPath(), time.Now())
			if ok {
				r.Header.Set("Authorization", codec.Prefix()+minted)
			}
			next.ServeHTTP(w, r)
		})
	}
}
