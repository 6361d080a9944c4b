package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/voicedrop/internal/common"
)

// Rejection codes returned to the browser.
const (
	CodeInvalidEmail       = "invalid-email"
	CodePasswordTooShort   = "password-too-short"
	CodePasswordWhitespace = "password-has-whitespace"
	CodePasswordMismatch   = "password-mismatch"
	CodeEmailTaken         = "email-taken"
	CodeWrongCredentials   = "wrong-credentials"
)

// Rejection is the body of a decision that went against the user.
type Rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var rejections = []struct {
	err error
	rej Rejection
}{
	{common.ErrorInvalidEmail, Rejection{CodeInvalidEmail, common.ErrorInvalidEmail.Error()}},
	{common.ErrorPasswordTooShort, Rejection{CodePasswordTooShort, common.ErrorPasswordTooShort.Error()}},
	{common.ErrorPasswordWhitespace, Rejection{CodePasswordWhitespace, common.ErrorPasswordWhitespace.Error()}},
	{common.ErrorPasswordMismatch, Rejection{CodePasswordMismatch, common.ErrorPasswordMismatch.Error()}},
	{common.ErrorAlreadyExists, Rejection{CodeEmailTaken, "this email is already registered"}},
	{common.ErrorUnauthorized, Rejection{CodeWrongCredentials, "wrong email or password"}},
}

func rejectionFor(err error) (Rejection, bool) {
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r.rej, true
		}
	}
	return Rejection{}, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
