package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gatehouse/gatehouse/internal/model"
	"github.com/gatehouse/gatehouse/internal/token"
)

// writeJSON serializes v and writes it with the given HTTP status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeOK writes the success envelope with an HTTP 200.
func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, model.OK(data))
}

// writeFailed writes a handled business failure. The transport status stays
// 200; the envelope code 0 carries the verdict, matching every route's
// uniform shape.
func writeFailed(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, model.Failed(msg))
}

// writeTokenError maps a session-token verification error onto the two
// business codes reserved outside the HTTP status range: 10001 for an
// invalid token and 10002 for an expired signature.
func writeTokenError(w http.ResponseWriter, err error) {
	code := model.CodeInvalidToken
	msg := "Invalid Token"
	if errors.Is(err, token.ErrExpiredSignature) {
		code = model.CodeExpiredSignature
		msg = "Expired Signature"
	}
	writeJSON(w, http.StatusForbidden, model.APIResponse{Code: code, Msg: msg})
}

// readJSON decodes the request body into v, closing it afterwards.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
