package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse/gatehouse/internal/store"
)

// UserTokenHandler manages the long-lived opaque API tokens.
type UserTokenHandler struct {
	store  *store.Store
	logger Logger
}

// NewUserTokenHandler wires a UserTokenHandler.
func NewUserTokenHandler(st *store.Store, logger Logger) *UserTokenHandler {
	return &UserTokenHandler{store: st, logger: logger}
}

// List returns every opaque token.
// GET /user_token/all
func (h *UserTokenHandler) List(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.store.ListUserTokens(r.Context())
	if err != nil {
		h.logger.Error("list user tokens failed", "error", err)
		writeFailed(w, "list user tokens failed")
		return
	}
	writeOK(w, tokens)
}

// Info returns the opaque token owned by one user.
// GET /user_token/info/{userID}
func (h *UserTokenHandler) Info(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	t, err := h.store.GetUserTokenByUserID(r.Context(), userID)
	if err != nil {
		h.logger.Error("get user token failed", "user_id", userID, "error", err)
		writeFailed(w, "get user token failed")
		return
	}
	writeOK(w, t)
}

type userTokenRequest struct {
	UserID   string `json:"user_id"`
	IsActive bool   `json:"is_active"`
}

// Add generates a fresh opaque token for a user.
// POST /user_token/add
func (h *UserTokenHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req userTokenRequest
	if err := readJSON(r, &req); err != nil {
		writeFailed(w, "invalid request body")
		return
	}
	t, err := h.store.CreateUserToken(r.Context(), req.UserID)
	if err != nil {
		h.logger.Error("create user token failed", "user_id", req.UserID, "error", err)
		writeFailed(w, "create user token failed")
		return
	}
	writeOK(w, t)
}

// Update enables or disables a user's opaque token.
// PUT /user_token/update
func (h *UserTokenHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req userTokenRequest
	if err := readJSON(r, &req); err != nil {
		writeFailed(w, "invalid request body")
		return
	}
	if err := h.store.SetUserTokenActive(r.Context(), req.UserID, req.IsActive); err != nil {
		h.logger.Error("update user token failed", "user_id", req.UserID, "error", err)
		writeFailed(w, "update user token failed")
		return
	}
	writeOK(w, nil)
}

// Delete removes a user's opaque token.
// DELETE /user_token/delete/{userID}
func (h *UserTokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.store.DeleteUserTokenByUserID(r.Context(), userID); err != nil {
		h.logger.Error("delete user token failed", "user_id", userID, "error", err)
		writeFailed(w, "delete user token failed")
		return
	}
	writeOK(w, nil)
}
