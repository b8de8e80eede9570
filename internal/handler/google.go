package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"github.com/iliyamo/ministry-portal/internal/logging"
	"github.com/iliyamo/ministry-portal/internal/service"
	"github.com/iliyamo/ministry-portal/internal/utils"
)

const (
	providerGoogle   = "google"
	userInfoURL      = "https://www.googleapis.com/oauth2/v2/userinfo"
	scopeUserEmail   = "https://www.googleapis.com/auth/userinfo.email"
	scopeUserProfile = "https://www.googleapis.com/auth/userinfo.profile"
)

var errEmailNotVerified = errors.New("google email not verified")

// Linker is implemented by *service.ExternalLinker.
type Linker interface {
	Link(ctx context.Context, id service.ExternalIdentity, mode service.Mode) (service.LinkResult, error)
}

// GoogleHandler runs the Google sign-in flows: the browser redirect with
// a signed state carrying the mode, and the direct ID token assertion used
// by mobile clients.
type GoogleHandler struct {
	Config  *oauth2.Config
	State   *utils.StateSigner
	Linker  Linker
	Log     logging.Logger
	Timeout time.Duration

	// FetchIdentity exchanges an authorization code for the user's
	// identity.  Defaults to the userinfo endpoint.
	FetchIdentity func(ctx context.Context, code string) (service.ExternalIdentity, error)
	// ValidateToken checks an ID token against the client id.
	ValidateToken func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// NewGoogleConfig builds the OAuth client for the redirect flow.
func NewGoogleConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{scopeUserEmail, scopeUserProfile},
	}
}

func NewGoogleHandler(conf *oauth2.Config, state *utils.StateSigner, linker Linker, log logging.Logger, timeout time.Duration) *GoogleHandler {
	h := &GoogleHandler{Config: conf, State: state, Linker: linker, Log: log, Timeout: timeout}
	h.FetchIdentity = h.fetchUserInfo
	h.ValidateToken = idtoken.Validate
	return h
}

type idTokenReq struct {
	IDToken string `json:"id_token"`
	Mode    string `json:"mode"`
}

type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// Login redirects to Google's consent page.  The mode query parameter
// (login or signup) rides along inside the signed state.
func (h *GoogleHandler) Login(c echo.Context) error {
	mode, err := service.ParseMode(c.QueryParam("mode"))
	if err != nil {
		return failWith(c, h.Log, err)
	}
	state, err := h.State.Sign(string(mode))
	if err != nil {
		return failWith(c, h.Log, err)
	}
	return c.Redirect(http.StatusTemporaryRedirect, h.Config.AuthCodeURL(state))
}

// Callback finishes the redirect flow.
func (h *GoogleHandler) Callback(c echo.Context) error {
	if e := c.QueryParam("error"); e != "" {
		return fail(c, http.StatusUnauthorized, "google sign-in cancelled: "+e)
	}
	rawMode, err := h.State.Verify(c.QueryParam("state"))
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	mode, err := service.ParseMode(rawMode)
	if err != nil {
		return failWith(c, h.Log, err)
	}
	code := c.QueryParam("code")
	if code == "" {
		return fail(c, http.StatusBadRequest, "code required")
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	id, err := h.FetchIdentity(ctx, code)
	if err != nil {
		return h.identityFailed(c, err)
	}
	return h.link(ctx, c, id, mode)
}

// LinkToken signs in with an ID token obtained by the client itself.
func (h *GoogleHandler) LinkToken(c echo.Context) error {
	var req idTokenReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.IDToken = strings.TrimSpace(req.IDToken)
	if req.IDToken == "" {
		return fail(c, http.StatusBadRequest, "id_token required")
	}
	mode, err := service.ParseMode(req.Mode)
	if err != nil {
		return failWith(c, h.Log, err)
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	payload, err := h.ValidateToken(ctx, req.IDToken, h.Config.ClientID)
	if err != nil {
		h.Log.Warn(ctx, "id token rejected", "err", err)
		return fail(c, http.StatusUnauthorized, "invalid id token")
	}
	id, err := identityFromPayload(payload)
	if err != nil {
		return h.identityFailed(c, err)
	}
	return h.link(ctx, c, id, mode)
}

func (h *GoogleHandler) link(ctx context.Context, c echo.Context, id service.ExternalIdentity, mode service.Mode) error {
	res, err := h.Linker.Link(ctx, id, mode)
	if err != nil {
		return failWith(c, h.Log, err)
	}
	if res.IsNewAccount {
		return ok(c, http.StatusCreated, "account created", res)
	}
	return ok(c, http.StatusOK, "", res)
}

func (h *GoogleHandler) identityFailed(c echo.Context, err error) error {
	if errors.Is(err, errEmailNotVerified) {
		return fail(c, http.StatusUnauthorized, err.Error())
	}
	h.Log.Error(c.Request().Context(), "google identity lookup failed", "err", err)
	return fail(c, http.StatusBadGateway, "google sign-in failed")
}

func (h *GoogleHandler) fetchUserInfo(ctx context.Context, code string) (service.ExternalIdentity, error) {
	tok, err := h.Config.Exchange(ctx, code)
	if err != nil {
		return service.ExternalIdentity{}, fmt.Errorf("exchange code: %w", err)
	}
	resp, err := h.Config.Client(ctx, tok).Get(userInfoURL)
	if err != nil {
		return service.ExternalIdentity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return service.ExternalIdentity{}, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var u googleUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return service.ExternalIdentity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if !u.VerifiedEmail {
		return service.ExternalIdentity{}, errEmailNotVerified
	}
	return service.ExternalIdentity{Provider: providerGoogle, ExternalID: u.ID, Email: u.Email, DisplayName: u.Name}, nil
}

func identityFromPayload(p *idtoken.Payload) (service.ExternalIdentity, error) {
	email, _ := p.Claims["email"].(string)
	name, _ := p.Claims["name"].(string)
	if verified, _ := p.Claims["email_verified"].(bool); !verified {
		return service.ExternalIdentity{}, errEmailNotVerified
	}
	return service.ExternalIdentity{Provider: providerGoogle, ExternalID: p.Subject, Email: email, DisplayName: name}, nil
}
