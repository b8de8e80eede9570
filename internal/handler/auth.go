package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ministry-portal/internal/logging"
	"github.com/iliyamo/ministry-portal/internal/model"
	"github.com/iliyamo/ministry-portal/internal/service"
)

// LocalAuthenticator is implemented by *service.LocalAuth.
type LocalAuthenticator interface {
	Signup(ctx context.Context, in service.SignupInput) (model.AccountSummary, error)
	Login(ctx context.Context, identifier, password string) (model.AccountSummary, error)
	ChangePassword(ctx context.Context, identifier, current, next string) error
}

// AuthHandler bundles dependencies for the password endpoints.
type AuthHandler struct {
	Auth    LocalAuthenticator
	Log     logging.Logger
	Timeout time.Duration
}

func NewAuthHandler(auth LocalAuthenticator, log logging.Logger, timeout time.Duration) *AuthHandler {
	return &AuthHandler{Auth: auth, Log: log, Timeout: timeout}
}

// ----- DTOs -----

type signupReq struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	ConfirmPassword  string `json:"confirm_password"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	SecurityQuestion string `json:"security_question"`
	SecurityAnswer   string `json:"security_answer"`
}

type loginReq struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type changePasswordReq struct {
	Identifier      string `json:"identifier"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Signup: create a local account and return its summary.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	acc, err := h.Auth.Signup(ctx, service.SignupInput{
		Username:         req.Username,
		Email:            req.Email,
		Password:         req.Password,
		ConfirmPassword:  req.ConfirmPassword,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		SecurityQuestion: req.SecurityQuestion,
		SecurityAnswer:   req.SecurityAnswer,
	})
	if err != nil {
		return failWith(c, h.Log, err)
	}
	return ok(c, http.StatusCreated, "account created", acc)
}

// Login: verify the password and return the account snapshot the client
// keeps as its session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "identifier/password required")
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	acc, err := h.Auth.Login(ctx, req.Identifier, req.Password)
	if err != nil {
		return failWith(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "", acc)
}

// ChangePassword: replace the password after re-checking the current one.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Auth.ChangePassword(ctx, req.Identifier, req.CurrentPassword, req.NewPassword); err != nil {
		return failWith(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "password updated", nil)
}
