package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ministry-portal/internal/logging"
	"github.com/iliyamo/ministry-portal/internal/service"
)

// CodeRecovery is implemented by *service.Recovery.
type CodeRecovery interface {
	SendCode(ctx context.Context, email string) (service.IssuedCode, error)
	VerifyCode(ctx context.Context, email, code string) error
	CompleteReset(ctx context.Context, email, code, newPassword string) error
}

// Notifier delivers an issued code to its owner out of band.
type Notifier interface {
	Notify(ctx context.Context, code service.IssuedCode) error
}

// OTPHandler serves the reset-code endpoints.  The code itself only ever
// leaves through the Notifier.
type OTPHandler struct {
	Recovery CodeRecovery
	Notifier Notifier
	Log      logging.Logger
	Timeout  time.Duration
}

func NewOTPHandler(r CodeRecovery, n Notifier, log logging.Logger, timeout time.Duration) *OTPHandler {
	return &OTPHandler{Recovery: r, Notifier: n, Log: log, Timeout: timeout}
}

type sendCodeReq struct {
	Email string `json:"email"`
}

type verifyCodeReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetReq struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type sentResp struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Send issues a fresh code (replacing any earlier one) and hands it to
// the notifier.  Resend is the same call.
func (h *OTPHandler) Send(c echo.Context) error {
	var req sendCodeReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	issued, err := h.Recovery.SendCode(ctx, req.Email)
	if err != nil {
		return failWith(c, h.Log, err)
	}
	if err := h.Notifier.Notify(ctx, issued); err != nil {
		h.Log.Error(ctx, "code delivery failed", "email", issued.Email, "err", err)
		return fail(c, http.StatusServiceUnavailable, "could not deliver code, try again")
	}
	return ok(c, http.StatusOK, "code sent", sentResp{Email: issued.Email, ExpiresAt: issued.ExpiresAt})
}

// Verify checks a code without consuming it.
func (h *OTPHandler) Verify(c echo.Context) error {
	var req verifyCodeReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Recovery.VerifyCode(ctx, req.Email, req.Code); err != nil {
		return failWith(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "code verified", nil)
}

// Reset sets the new password and consumes the code.
func (h *OTPHandler) Reset(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Recovery.CompleteReset(ctx, req.Email, req.Code, req.NewPassword); err != nil {
		return failWith(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "password reset", nil)
}
