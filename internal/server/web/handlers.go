package web

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/dmitrijs2005/voicedrop/internal/common"
	"github.com/dmitrijs2005/voicedrop/internal/server/sessions"
	"github.com/dmitrijs2005/voicedrop/internal/server/validation"
)

// credentials is the body accepted by signup and login, either as JSON or as
// an urlencoded form.
type credentials struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	RetypePassword string `json:"retypePassword"`
}

const maxBodyBytes = 64 << 10

func decodeCredentials(r *http.Request) (credentials, error) {
	var in credentials

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&in)
		if err != nil && !errors.Is(err, io.EOF) {
			return in, err
		}
		return in, nil
	}

	if err := r.ParseForm(); err != nil {
		return in, err
	}
	in.Email = r.PostForm.Get("email")
	in.Password = r.PostForm.Get("password")
	in.RetypePassword = r.PostForm.Get("retypePassword")
	return in, nil
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "OK")
}

func (s *Server) checkSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessions.FromContext(r.Context()).Authenticated())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if sess := sessions.FromContext(r.Context()); sess.Authenticated() {
		_, _ = io.WriteString(w, sess.Email)
	}
}

// validateEmail binds the queried email to the session after a shape check
// only. No credential is verified.
func (s *Server) validateEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	if err := validation.ValidateEmail(email); err != nil {
		s.reject(w, r, err)
		return
	}

	s.logger.Warn(r.Context(), "session email claimed without credentials", "email", email)
	s.bindSession(w, r, email)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	in, err := decodeCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	u, err := s.users.Signup(r.Context(), in.Email, in.Password, in.RetypePassword)
	if err != nil {
		s.reject(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "user signed up", "email", u.Email, "user_id", u.ID)
	s.bindSession(w, r, u.Email)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	in, err := decodeCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	u, err := s.users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.reject(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "user logged in", "email", u.Email)
	s.bindSession(w, r, u.Email)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(w, r); err != nil {
		s.logger.Error(r.Context(), "session destroy failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) bindSession(w http.ResponseWriter, r *http.Request, email string) {
	if err := s.sessions.SetEmail(w, r, email); err != nil {
		s.logger.Error(r.Context(), "session update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, true)
}

// reject answers a failed decision with a 200 rejection body, or a 500 when
// err is not a known decision outcome.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, err error) {
	if rej, ok := rejectionFor(err); ok {
		writeJSON(w, http.StatusOK, rej)
		return
	}
	s.logger.Error(r.Context(), "request failed", "error", err)
	writeError(w, http.StatusInternalServerError, common.ErrorInternal.Error())
}
