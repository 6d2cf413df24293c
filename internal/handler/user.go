package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/model"
	"github.com/gatehouse/gatehouse/internal/server/middleware"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/token"
)

// UserHandler serves registration, login and profile management.
type UserHandler struct {
	store  *store.Store
	codec  *token.Codec
	auth   config.AuthConfig
	logger Logger
}

// Logger is the narrow logging surface handlers need.
type Logger interface {
	Error(msg string, args ...any)
}

// NewUserHandler wires a UserHandler.
func NewUserHandler(st *store.Store, codec *token.Codec, auth config.AuthConfig, logger Logger) *UserHandler {
	return &UserHandler{store: st, codec: codec, auth: auth, logger: logger}
}

// Register creates a new account.
// POST /user/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterUser
	if err := readJSON(r, &req); err != nil {
		writeFailed(w, "invalid request body")
		return
	}

	u := model.User{
		Name:     req.Name,
		Gender:   req.Gender,
		Age:      req.Age,
		Phone:    req.Phone,
		Password: store.HashPassword(req.Password),
		IsActive: req.IsActive,
	}
	if err := h.store.CreateUser(r.Context(), &u); err != nil {
		h.logger.Error("register user failed", "error", err)
		writeFailed(w, "register user failed")
		return
	}
	writeOK(w, nil)
}

type loginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login authenticates by phone and password and issues a session token.
// POST /user/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.Login
	if err := readJSON(r, &req); err != nil {
		writeFailed(w, "invalid request body")
		return
	}
	if req.Phone == nil || len(*req.Phone) < 11 {
		writeFailed(w, "phone: invalid length")
		return
	}
	if req.Password == nil || len(*req.Password) < 6 {
		writeFailed(w, "password: invalid length")
		return
	}

	user, err := h.store.GetUserByPhone(r.Context(), *req.Phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.logger.Error("login failed: unknown phone", "phone", *req.Phone)
			writeFailed(w, "wrong phone or password")
			return
		}
		h.logger.Error("login failed", "error", err)
		writeFailed(w, "login failed")
		return
	}
	if store.HashPassword(*req.Password) != user.Password {
		writeFailed(w, "wrong phone or password")
		return
	}

	sessionToken, err := h.codec.Issue(user.ID, user.Name, h.auth.Expire())
	if err != nil {
		h.logger.Error("session token issue failed", "error", err)
		writeFailed(w, "login failed")
		return
	}
	writeOK(w, loginResponse{Token: sessionToken, User: *user})
}

// Info returns the caller's profile. With keep-alive enabled it also hands
// back a refreshed session token for persistent login.
// GET /user/info
func (h *UserHandler) Info(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeTokenError(w, token.ErrInvalidToken)
		return
	}

	refreshed := ""
	if h.auth.KeepAlive {
		t, err := h.codec.Issue(principal.ID, principal.Username, h.auth.Expire())
		if err != nil {
			h.logger.Error("keep-alive token refresh failed", "error", err)
		} else {
			refreshed = t
		}
	}

	user, err := h.store.GetUserByID(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("get user info failed", "error", err)
		writeFailed(w, "get user info failed")
		return
	}
	writeOK(w, model.UserInfo{User: *user, Token: refreshed})
}

// ListAll returns every user.
// GET /user/all
func (h *UserHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", "error", err)
		writeFailed(w, "list users failed")
		return
	}
	writeOK(w, users)
}

// Delete removes a user by name.
// DELETE /delete/{user}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "user")
	if err := h.store.DeleteUserByName(r.Context(), name); err != nil {
		h.logger.Error("delete user failed", "user", name, "error", err)
		writeFailed(w, "delete user failed")
		return
	}
	writeOK(w, nil)
}

// UpdatePhone changes a user's phone number, addressed by name.
// PUT /update_name/{user}/{phone}
func (h *UserHandler) UpdatePhone(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "user")
	phone := chi.URLParam(r, "phone")
	if err := h.store.UpdatePhoneByName(r.Context(), name, phone); err != nil {
		h.logger.Error("update user phone failed", "user", name, "error", err)
		writeFailed(w, "update user phone failed")
		return
	}
	writeOK(w, nil)
}

// UpdateAll overwrites a user's mutable fields by id.
// POST /update_user_info
func (h *UserHandler) UpdateAll(w http.ResponseWriter, r *http.Request) {
	var u model.User
	if err := readJSON(r, &u); err != nil {
		writeFailed(w, "invalid request body")
		return
	}
	if err := h.store.UpdateUser(r.Context(), &u); err != nil {
		h.logger.Error("update user failed", "error", err)
		writeFailed(w, "update user failed")
		return
	}
	writeOK(w, nil)
}

type findUserRequest struct {
	Name string `json:"name"`
}

// Find returns one user by name.
// POST /get_user
func (h *UserHandler) Find(w http.ResponseWriter, r *http.Request) {
	var req findUserRequest
	if err := readJSON(r, &req); err != nil {
		writeFailed(w, "invalid request body")
		return
	}
	user, err := h.store.GetUserByName(r.Context(), req.Name)
	if err != nil {
		h.logger.Error("find user failed", "user", req.Name, "error", err)
		writeFailed(w, "find user failed")
		return
	}
	writeOK(w, user)
}
