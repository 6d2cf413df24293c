package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/token"
)

// Resolver upgrades a long-lived opaque API token into a short-lived signed
// session token scoped to one user and one URI. It never blocks a request:
// every failure path logs and reports "no match" so the request falls
// through to ordinary, possibly unauthenticated, handling.
type Resolver struct {
	store  *store.Store
	codec  *token.Codec
	logger *slog.Logger
}

// NewResolver wires a Resolver over the grant store and token codec.
func NewResolver(st *store.Store, codec *token.Codec, logger *slog.Logger) *Resolver {
	return &Resolver{store: st, codec: codec, logger: logger}
}

// Resolve checks whether opaqueToken is authorized for the (still escaped)
// request path and, if so, mints a session token for the grant's owner.
// The minted token expires exactly when the grant does, not after a fresh
// TTL window. The second return is false whenever no credential should be
// injected.
func (r *Resolver) Resolve(ctx context.Context, opaqueToken, escapedPath string, now time.Time) (string, bool) {
	uri, err := url.PathUnescape(escapedPath)
	if err != nil {
		r.logger.Error("api token: request path decode failed",
			"api_token", opaqueToken, "error", err)
		return "", false
	}

	grant, err := r.store.ResolveGrant(ctx, opaqueToken, uri)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Error("api token: no grant for uri",
				"api_token", opaqueToken, "uri", uri)
		} else {
			r.logger.Error("api token: grant lookup failed",
				"api_token", opaqueToken, "uri", uri, "error", err)
		}
		return "", false
	}

	if !now.Before(grant.Expire) {
		r.logger.Error("api token: grant expired", "api_token", grant.Token, "uri", uri)
		return "", false
	}

	userID, err := strconv.ParseInt(grant.UserID, 10, 64)
	if err != nil {
		r.logger.Error("api token: owner id parse failed",
			"api_token", grant.Token, "user_id", grant.UserID, "error", err)
		return "", false
	}

	minted, err := r.codec.IssueWithExpiry(userID, "", grant.Expire)
	if err != nil {
		r.logger.Error("api token: session token mint failed",
			"api_token", grant.Token, "error", err)
		return "", false
	}
	return minted, true
}
