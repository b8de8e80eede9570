package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ministry-portal/internal/logging"
	"github.com/iliyamo/ministry-portal/internal/service"
)

// SecurityHandler exposes the legacy security-question check.  A correct
// answer only reports success; it does not unlock a password reset.
type SecurityHandler struct {
	Questions service.SecurityQuestionRecovery
	Log       logging.Logger
	Timeout   time.Duration
}

func NewSecurityHandler(q service.SecurityQuestionRecovery, log logging.Logger, timeout time.Duration) *SecurityHandler {
	return &SecurityHandler{Questions: q, Log: log, Timeout: timeout}
}

type questionReq struct {
	Identifier string `json:"identifier"`
}

type answerReq struct {
	Identifier string `json:"identifier"`
	Answer     string `json:"answer"`
}

func (h *SecurityHandler) Question(c echo.Context) error {
	var req questionReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	q, err := h.Questions.Question(ctx, req.Identifier)
	if err != nil {
		return failWith(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"question": q})
}

func (h *SecurityHandler) Verify(c echo.Context) error {
	var req answerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Questions.VerifyAnswer(ctx, req.Identifier, req.Answer); err != nil {
		return failWith(c, h.Log, err)
	}
	return ok(c, http.StatusOK, "answer verified", nil)
}
