package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/voicedrop/internal/common"
	"github.com/dmitrijs2005/voicedrop/internal/logging"
	"github.com/dmitrijs2005/voicedrop/internal/server/models"
	"github.com/dmitrijs2005/voicedrop/internal/server/sessions"
	"github.com/dmitrijs2005/voicedrop/internal/server/validation"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

// fakeUserService keeps plaintext passwords in memory.
type fakeUserService struct {
	users map[string]string
	err   error
}

func newFakeUserService() *fakeUserService {
	return &fakeUserService{users: map[string]string{}}
}

func (f *fakeUserService) Signup(_ context.Context, email, password, retype string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := validation.ValidateSignup(email, password, retype); err != nil {
		return nil, err
	}
	if _, ok := f.users[email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	f.users[email] = password
	return &models.User{ID: "u1", Email: email}, nil
}

func (f *fakeUserService) Login(_ context.Context, email, password string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.users[email]; !ok || p != password {
		return nil, common.ErrorUnauthorized
	}
	return &models.User{ID: "u1", Email: email}, nil
}

// client is a cookie-carrying driver for the router.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func newTestClient(t *testing.T, us userService) *client {
	t.Helper()
	sm := sessions.NewManager(sessions.NewMemoryStore(time.Hour), sessions.ManagerOptions{
		Secret: "secret", TTL: time.Hour, CookieName: "sid",
	}, nopLogger{})
	s := NewServer("127.0.0.1:0", nopLogger{}, us, sm, nil)
	return &client{t: t, handler: s.Handler(), cookies: map[string]*http.Cookie{}}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postJSON(path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	b, err := json.Marshal(body)
	require.NoError(c.t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) checkSession() bool {
	c.t.Helper()
	rec := c.get("/check-session")
	require.Equal(c.t, http.StatusOK, rec.Code)
	var v bool
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func decodeRejection(t *testing.T, rec *httptest.ResponseRecorder) Rejection {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	var rej Rejection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rej), "body: %s", rec.Body.String())
	return rej
}

func assertTrue(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "true", rec.Body.String())
}

func signupBody(email, password, retype string) map[string]string {
	return map[string]string{"email": email, "password": password, "retypePassword": retype}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, newFakeUserService())
	rec := c.get("/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Empty(t, rec.Result().Cookies(), "ping does not start a session")
}

func TestCheckSession_FreshSessionIsFalse(t *testing.T) {
	c := newTestClient(t, newFakeUserService())
	assert.False(t, c.checkSession())

	rec := c.get("/get-session")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestSignup_SetsSession(t *testing.T) {
	us := newFakeUserService()
	c := newTestClient(t, us)

	assert.False(t, c.checkSession())
	assertTrue(t, c.postJSON("/validate-userInfo", signupBody("x@y.com", "abc123", "abc123")))

	assert.True(t, c.checkSession())
	assert.Equal(t, "x@y.com", c.get("/get-session").Body.String())
	assert.Contains(t, us.users, "x@y.com")
}

func TestSignup_FormEncoded(t *testing.T) {
	us := newFakeUserService()
	c := newTestClient(t, us)

	form := url.Values{"email": {"x@y.com"}, "password": {"abc123"}, "retypePassword": {"abc123"}}
	assertTrue(t, c.postForm("/validate-userInfo", form))
	assert.True(t, c.checkSession())
}

func TestSignup_Rejections(t *testing.T) {
	cases := []struct {
		name string
		body map[string]string
		code string
	}{
		{"invalid email", signupBody("nope", "abc123", "abc123"), CodeInvalidEmail},
		{"too short", signupBody("x@y.com", "abc", "abc"), CodePasswordTooShort},
		{"whitespace", signupBody("x@y.com", "abc 123", "abc 123"), CodePasswordWhitespace},
		{"mismatch", signupBody("x@y.com", "abc123", "abc321"), CodePasswordMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			us := newFakeUserService()
			c := newTestClient(t, us)

			rej := decodeRejection(t, c.postJSON("/validate-userInfo", tc.body))
			assert.Equal(t, tc.code, rej.Code)
			assert.NotEmpty(t, rej.Message)
			assert.Empty(t, us.users)
			assert.False(t, c.checkSession())
		})
	}
}

func TestSignup_EmailTaken(t *testing.T) {
	us := newFakeUserService()
	us.users["x@y.com"] = "abc123"
	c := newTestClient(t, us)

	rej := decodeRejection(t, c.postJSON("/validate-userInfo", signupBody("x@y.com", "abc123", "abc123")))
	assert.Equal(t, CodeEmailTaken, rej.Code)
	assert.False(t, c.checkSession())
}

func TestSignup_InternalError(t *testing.T) {
	us := newFakeUserService()
	us.err = errors.New("db error: connection reset")
	c := newTestClient(t, us)

	rec := c.postJSON("/validate-userInfo", signupBody("x@y.com", "abc123", "abc123"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
	assert.False(t, c.checkSession())
}

func TestSignup_MalformedJSON(t *testing.T) {
	c := newTestClient(t, newFakeUserService())

	req := httptest.NewRequest(http.MethodPost, "/validate-userInfo", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := c.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	us := newFakeUserService()
	us.users["x@y.com"] = "abc123"

	t.Run("wrong password", func(t *testing.T) {
		c := newTestClient(t, us)
		rej := decodeRejection(t, c.postJSON("/login", map[string]string{"email": "x@y.com", "password": "nope12"}))
		assert.Equal(t, CodeWrongCredentials, rej.Code)
		assert.False(t, c.checkSession())
	})

	t.Run("unknown email gets the same rejection", func(t *testing.T) {
		c := newTestClient(t, us)
		rej := decodeRejection(t, c.postJSON("/login", map[string]string{"email": "ghost@y.com", "password": "abc123"}))
		assert.Equal(t, CodeWrongCredentials, rej.Code)
	})

	t.Run("success", func(t *testing.T) {
		c := newTestClient(t, us)
		assertTrue(t, c.postJSON("/login", map[string]string{"email": "x@y.com", "password": "abc123"}))
		assert.True(t, c.checkSession())
		assert.Equal(t, "x@y.com", c.get("/get-session").Body.String())
	})
}

func TestValidateEmail(t *testing.T) {
	c := newTestClient(t, newFakeUserService())

	rej := decodeRejection(t, c.get("/validate-email?email=not-an-email"))
	assert.Equal(t, CodeInvalidEmail, rej.Code)
	assert.False(t, c.checkSession())

	assertTrue(t, c.get("/validate-email?email="+url.QueryEscape("a@b.com")))
	assert.True(t, c.checkSession())
	assert.Equal(t, "a@b.com", c.get("/get-session").Body.String())
}

func TestLogout(t *testing.T) {
	us := newFakeUserService()
	c := newTestClient(t, us)

	assertTrue(t, c.postJSON("/validate-userInfo", signupBody("x@y.com", "abc123", "abc123")))
	require.True(t, c.checkSession())

	assertTrue(t, c.do(httptest.NewRequest(http.MethodPost, "/logout", nil)))
	assert.False(t, c.checkSession())
}

func TestTamperedCookieIsFreshSession(t *testing.T) {
	c := newTestClient(t, newFakeUserService())
	assertTrue(t, c.get("/validate-email?email=a@b.com"))
	require.True(t, c.checkSession())

	ck := c.cookies["sid"]
	require.NotNil(t, ck)
	ck.Value += "tampered"

	assert.False(t, c.checkSession())
}

func TestRejectionFor_UnknownError(t *testing.T) {
	_, ok := rejectionFor(errors.New("other"))
	assert.False(t, ok)

	rej, ok := rejectionFor(errors.Join(errors.New("wrapped"), common.ErrorPasswordMismatch))
	require.True(t, ok)
	assert.Equal(t, CodePasswordMismatch, rej.Code)
}
