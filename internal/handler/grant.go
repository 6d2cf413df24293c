package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse/gatehouse/internal/model"
	"github.com/gatehouse/gatehouse/internal/store"
)

// GrantHandler manages the per-URI authorizations attached to opaque
// tokens.
type GrantHandler struct {
	store  *store.Store
	logger Logger
}

// NewGrantHandler wires a GrantHandler.
func NewGrantHandler(st *store.Store, logger Logger) *GrantHandler {
	return &GrantHandler{store: st, logger: logger}
}

// grantRequest is the wire shape for grant mutations. Expire is RFC 3339.
type grantRequest struct {
	ID          int64  `json:"id"`
	UserTokenID int64  `json:"user_token_id"`
	URI         string `json:"uri"`
	Expire      string `json:"expire"`
	IsActive    bool   `json:"is_active"`
}

func (g grantRequest) expire() (time.Time, error) {
	return time.Parse(time.RFC3339, g.Expire)
}

// List returns every grant.
// GET /token_uri/all
func (h *GrantHandler) List(w http.ResponseWriter, r *http.Request) {
	grants, err := h.store.ListGrants(r.Context())
	if err != nil {
		h.logger.Error("list grants failed", "error", err)
		writeFailed(w, "list grants failed")
		return
	}
	writeOK(w, grants)
}

// URIList returns the grants attached to one opaque token.
// GET /token_uri/uri_list/{tokenID}
func (h *GrantHandler) URIList(w http.ResponseWriter, r *http.Request) {
	tokenID, err := strconv.ParseInt(chi.URLParam(r, "tokenID"), 10, 64)
	if err != nil {
		writeFailed(w, "invalid token id")
		return
	}
	grants, err := h.store.ListGrantsByTokenID(r.Context(), tokenID)
	if err != nil {
		h.logger.Error("list grants by token failed", "token_id", tokenID, "error", err)
		writeFailed(w, "list grants failed")
		return
	}
	writeOK(w, grants)
}

// Add creates a new per-URI grant.
// POST /token_uri/add
func (h *GrantHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := readJSON(r, &req); err != nil {
		writeFailed(w, "invalid request body")
		return
	}
	expire, err := req.expire()
	if err != nil {
		writeFailed(w, "expire: invalid timestamp")
		return
	}
	g := model.TokenGrant{
		UserTokenID: req.UserTokenID,
		URI:         req.URI,
		Expire:      expire,
		IsActive:    req.IsActive,
	}
	if err := h.store.CreateGrant(r.Context(), &g); err != nil {
		h.logger.Error("create grant failed", "error", err)
		writeFailed(w, "create grant failed")
		return
	}
	writeOK(w, g)
}

// UpdateStatus enables or disables a grant.
// PUT /token_uri/update_status
func (h *GrantHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := readJSON(r, &req); err != nil {
		writeFailed(w, "invalid request body")
		return
	}
	if err := h.store.SetGrantActive(r.Context(), req.ID, req.IsActive); err != nil {
		h.logger.Error("update grant status failed", "grant_id", req.ID, "error", err)
		writeFailed(w, "update grant status failed")
		return
	}
	writeOK(w, nil)
}

// UpdateExpire changes a grant's expiry.
// PUT /token_uri/update_expire
func (h *GrantHandler) UpdateExpire(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := readJSON(r, &req); err != nil {
		writeFailed(w, "invalid request body")
		return
	}
	expire, err := req.expire()
	if err != nil {
		writeFailed(w, "expire: invalid timestamp")
		return
	}
	if err := h.store.UpdateGrantExpire(r.Context(), req.ID, expire); err != nil {
		h.logger.Error("update grant expire failed", "grant_id", req.ID, "error", err)
		writeFailed(w, "update grant expire failed")
		return
	}
	writeOK(w, nil)
}

// Delete removes a grant.
// DELETE /token_uri/delete/{id}
func (h *GrantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeFailed(w, "invalid grant id")
		return
	}
	if err := h.store.DeleteGrantByID(r.Context(), id); err != nil {
		h.logger.Error("delete grant failed", "grant_id", id, "error", err)
		writeFailed(w, "delete grant failed")
		return
	}
	writeOK(w, nil)
}
