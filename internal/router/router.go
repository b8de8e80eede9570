package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ministry-portal/internal/handler"
)

// Handlers groups everything the auth routes need.  Google may be nil
// when no OAuth client is configured; its routes are then not mounted.
type Handlers struct {
	Auth     *handler.AuthHandler
	OTP      *handler.OTPHandler
	Google   *handler.GoogleHandler
	Security *handler.SecurityHandler

	// OTPLimit wraps the code-issuing endpoint.
	OTPLimit echo.MiddlewareFunc
	// VerifyLimit wraps every endpoint that checks a code or an answer.
	VerifyLimit echo.MiddlewareFunc
}

// RegisterRoutes registers routes that do not belong to the auth API.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth mounts the authentication and recovery API under /v1/auth.
// Every route is unauthenticated: sessions are held by the client.
func RegisterAuth(e *echo.Echo, h Handlers) {
	g := e.Group("/v1/auth")

	g.POST("/signup", h.Auth.Signup)
	g.POST("/login", h.Auth.Login)
	g.POST("/password/change", h.Auth.ChangePassword)

	// Issuing a code and guessing one are throttled by separate buckets.
	g.POST("/otp/send", h.OTP.Send, limits(h.OTPLimit)...)
	g.POST("/otp/verify", h.OTP.Verify, limits(h.VerifyLimit)...)
	g.POST("/otp/reset", h.OTP.Reset, limits(h.VerifyLimit)...)

	if h.Google != nil {
		g.GET("/google/login", h.Google.Login)
		g.GET("/google/callback", h.Google.Callback)
		g.POST("/google", h.Google.LinkToken)
	}

	g.POST("/security-question", h.Security.Question, limits(h.VerifyLimit)...)
	g.POST("/security-question/verify", h.Security.Verify, limits(h.VerifyLimit)...)
}

func limits(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}
