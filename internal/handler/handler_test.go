package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ministry-portal/internal/logging"
	"github.com/iliyamo/ministry-portal/internal/model"
	"github.com/iliyamo/ministry-portal/internal/service"
)

type stubAuth struct {
	signup  func(service.SignupInput) (model.AccountSummary, error)
	login   func(ident, pw string) (model.AccountSummary, error)
	changed []string
	err     error
}

func (s *stubAuth) Signup(_ context.Context, in service.SignupInput) (model.AccountSummary, error) {
	return s.signup(in)
}

func (s *stubAuth) Login(_ context.Context, ident, pw string) (model.AccountSummary, error) {
	return s.login(ident, pw)
}

func (s *stubAuth) ChangePassword(_ context.Context, ident, cur, next string) error {
	s.changed = append(s.changed, ident, cur, next)
	return s.err
}

type stubRecovery struct {
	issued    service.IssuedCode
	sendErr   error
	verifyErr error
	resetErr  error
	reset     []string
}

func (s *stubRecovery) SendCode(context.Context, string) (service.IssuedCode, error) {
	return s.issued, s.sendErr
}

func (s *stubRecovery) VerifyCode(context.Context, string, string) error { return s.verifyErr }

func (s *stubRecovery) CompleteReset(_ context.Context, email, code, pw string) error {
	s.reset = append(s.reset, email, code, pw)
	return s.resetErr
}

type recordingNotifier struct {
	sent []service.IssuedCode
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, c service.IssuedCode) error {
	n.sent = append(n.sent, c)
	return n.err
}

// do runs one request through h and decodes the envelope.
func do(t *testing.T, h echo.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		service.ErrValidation:  http.StatusBadRequest,
		service.ErrAuth:        http.StatusUnauthorized,
		service.ErrExpired:     http.StatusGone,
		service.ErrForbidden:   http.StatusForbidden,
		service.ErrNotFound:    http.StatusNotFound,
		service.ErrConflict:    http.StatusConflict,
		errors.New("db down"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusOf(err), err.Error())
	}
}

func TestAuthHandler_Signup(t *testing.T) {
	var got service.SignupInput
	auth := &stubAuth{signup: func(in service.SignupInput) (model.AccountSummary, error) {
		got = in
		return model.AccountSummary{ID: 7, Username: in.Username, Status: model.StatusUnverified}, nil
	}}
	h := NewAuthHandler(auth, logging.Discard(), time.Second)

	rec, env := do(t, h.Signup, http.MethodPost, "/v1/auth/signup",
		`{"username":"alice","email":"alice@x.com","password":"Passw0rd!","confirm_password":"Passw0rd!","first_name":"Alice","last_name":"Liddell","security_question":"q","security_answer":"a"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Passw0rd!", got.ConfirmPassword)
	assert.Equal(t, "Liddell", got.LastName)
	assert.NotContains(t, rec.Body.String(), "hash")
}

func TestAuthHandler_SignupConflict(t *testing.T) {
	auth := &stubAuth{signup: func(service.SignupInput) (model.AccountSummary, error) {
		return model.AccountSummary{}, &service.Error{Kind: service.KindConflict, Message: "username or email already taken"}
	}}
	h := NewAuthHandler(auth, logging.Discard(), time.Second)

	rec, env := do(t, h.Signup, http.MethodPost, "/v1/auth/signup", `{"username":"alice"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "username or email already taken", env.Message)
}

func TestAuthHandler_LoginHidesInternalErrors(t *testing.T) {
	auth := &stubAuth{login: func(string, string) (model.AccountSummary, error) {
		return model.AccountSummary{}, errors.New("dial tcp 10.0.0.1:3306: refused")
	}}
	h := NewAuthHandler(auth, logging.Discard(), time.Second)

	rec, env := do(t, h.Login, http.MethodPost, "/v1/auth/login", `{"identifier":"alice","password":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", env.Message)
}

func TestAuthHandler_LoginRequiresFields(t *testing.T) {
	h := NewAuthHandler(&stubAuth{}, logging.Discard(), time.Second)

	rec, env := do(t, h.Login, http.MethodPost, "/v1/auth/login", `{"identifier":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	auth := &stubAuth{}
	h := NewAuthHandler(auth, logging.Discard(), time.Second)

	rec, _ := do(t, h.ChangePassword, http.MethodPost, "/v1/auth/password/change",
		`{"identifier":"alice","current_password":"old","new_password":"NewPass1!"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"alice", "old", "NewPass1!"}, auth.changed)

	auth.err = service.ErrAuth
	rec, _ = do(t, h.ChangePassword, http.MethodPost, "/v1/auth/password/change", `{"identifier":"alice"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOTPHandler_SendNeverEchoesCode(t *testing.T) {
	rec := &stubRecovery{issued: service.IssuedCode{Email: "alice@x.com", Code: "048213", DisplayName: "Alice"}}
	n := &recordingNotifier{}
	h := NewOTPHandler(rec, n, logging.Discard(), time.Second)

	resp, env := do(t, h.Send, http.MethodPost, "/v1/auth/otp/send", `{"email":"alice@x.com"}`)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, env.Success)
	assert.NotContains(t, resp.Body.String(), "048213")
	require.Len(t, n.sent, 1)
	assert.Equal(t, "048213", n.sent[0].Code)
}

func TestOTPHandler_SendFailures(t *testing.T) {
	h := NewOTPHandler(&stubRecovery{sendErr: service.ErrNotFound}, &recordingNotifier{}, logging.Discard(), time.Second)
	resp, _ := do(t, h.Send, http.MethodPost, "/v1/auth/otp/send", `{"email":"ghost@x.com"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	h = NewOTPHandler(&stubRecovery{}, &recordingNotifier{err: errors.New("broker down")}, logging.Discard(), time.Second)
	resp, _ = do(t, h.Send, http.MethodPost, "/v1/auth/otp/send", `{"email":"alice@x.com"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestOTPHandler_VerifyAndReset(t *testing.T) {
	r := &stubRecovery{verifyErr: service.ErrExpired}
	h := NewOTPHandler(r, &recordingNotifier{}, logging.Discard(), time.Second)

	resp, _ := do(t, h.Verify, http.MethodPost, "/v1/auth/otp/verify", `{"email":"alice@x.com","code":"111111"}`)
	assert.Equal(t, http.StatusGone, resp.Code)

	resp, _ = do(t, h.Reset, http.MethodPost, "/v1/auth/otp/reset", `{"email":"alice@x.com","code":"222222","new_password":"NewPass1!"}`)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"alice@x.com", "222222", "NewPass1!"}, r.reset)
}

type stubQuestions struct{ err error }

func (s stubQuestions) Question(context.Context, string) (string, error) { return "Pet?", s.err }
func (s stubQuestions) VerifyAnswer(context.Context, string, string) error { return s.err }

func TestSecurityHandler(t *testing.T) {
	h := NewSecurityHandler(stubQuestions{}, logging.Discard(), time.Second)
	resp, env := do(t, h.Question, http.MethodPost, "/v1/auth/security-question", `{"identifier":"alice"}`)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, map[string]any{"question": "Pet?"}, env.Data)

	h = NewSecurityHandler(stubQuestions{err: service.ErrAuth}, logging.Discard(), time.Second)
	resp, _ = do(t, h.Verify, http.MethodPost, "/v1/auth/security-question/verify", `{"identifier":"alice","answer":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	resp, env := do(t, Health(nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, env.Success)

	resp, _ = do(t, Health(pinger{err: errors.New("gone")}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
