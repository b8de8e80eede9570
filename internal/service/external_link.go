package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/ministry-portal/internal/logging"
	"github.com/iliyamo/ministry-portal/internal/model"
	"github.com/iliyamo/ministry-portal/internal/repository"
)

// Mode says whether a first external sign-in may create an account.
type Mode string

const (
	ModeLogin  Mode = "login"
	ModeSignup Mode = "signup"
)

// ParseMode accepts "login" and "signup", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeLogin, ModeSignup:
		return m, nil
	}
	return "", validation("mode must be login or signup")
}

// ExternalIdentity is a verified assertion from the identity provider.
type ExternalIdentity struct {
	Provider    string
	ExternalID  string
	Email       string
	DisplayName string
}

// LinkResult is returned by ExternalLinker.Link.
type LinkResult struct {
	Account      model.AccountSummary `json:"account"`
	IsNewAccount bool                 `json:"isNewAccount"`
}

// ExternalLinker reconciles a provider identity with a local account.
// Accounts are matched by external id only, never by email.
type ExternalLinker struct {
	Accounts AccountStore
	Log      logging.Logger
	Now      func() time.Time
}

func NewExternalLinker(accounts AccountStore, log logging.Logger) *ExternalLinker {
	return &ExternalLinker{Accounts: accounts, Log: log, Now: time.Now}
}

const maxUsernameAttempts = 5

// Link signs in the account bound to id.ExternalID, or creates one when
// mode is signup.  Repeating a signup with the same external id returns
// the existing account with IsNewAccount=false.
func (l *ExternalLinker) Link(ctx context.Context, id ExternalIdentity, mode Mode) (LinkResult, error) {
	id.ExternalID = strings.TrimSpace(id.ExternalID)
	id.Email = normalizeEmail(id.Email)
	if id.ExternalID == "" {
		return LinkResult{}, validation("external identity is missing its id")
	}
	if mode != ModeLogin && mode != ModeSignup {
		return LinkResult{}, validation("mode must be login or signup")
	}

	a, err := l.Accounts.GetByGoogleID(ctx, id.ExternalID)
	switch {
	case err == nil:
		return l.signIn(ctx, a)
	case !errors.Is(err, repository.ErrNotFound):
		return LinkResult{}, fmt.Errorf("load linked account: %w", err)
	case mode == ModeLogin:
		return LinkResult{}, notFound("no account linked to this sign-in, sign up first")
	}
	return l.create(ctx, id)
}

func (l *ExternalLinker) signIn(ctx context.Context, a model.Account) (LinkResult, error) {
	if !active(a) {
		return LinkResult{}, forbidden(MsgDeactivated)
	}
	touchLastLogin(ctx, l.Accounts, l.Log, &a, l.Now())
	return LinkResult{Account: a.Summary()}, nil
}

func (l *ExternalLinker) create(ctx context.Context, id ExternalIdentity) (LinkResult, error) {
	if id.Email == "" {
		return LinkResult{}, validation("external identity is missing an email")
	}
	if _, err := l.Accounts.GetByEmail(ctx, id.Email); err == nil {
		return LinkResult{}, conflict("email already registered, sign in with your password")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return LinkResult{}, fmt.Errorf("check email: %w", err)
	}

	username, err := l.freeUsername(ctx, id.Email)
	if err != nil {
		return LinkResult{}, err
	}
	a := model.Account{
		Username:         username,
		Email:            id.Email,
		DisplayName:      firstNonEmpty(strings.TrimSpace(id.DisplayName), username),
		Credential:       model.ExternalCredential(id.ExternalID),
		SecurityQuestion: model.ExternalQuestion,
		Role:             model.DefaultRole,
		Status:           model.StatusUnverified,
		IsActive:         true,
	}
	newID, err := l.Accounts.Create(ctx, a)
	if err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return LinkResult{}, fmt.Errorf("create account: %w", err)
		}
		// Lost a race against a concurrent signup for the same identity.
		existing, gerr := l.Accounts.GetByGoogleID(ctx, id.ExternalID)
		if gerr != nil {
			return LinkResult{}, conflict("username or email already registered")
		}
		return l.signIn(ctx, existing)
	}
	a.ID = newID
	l.Log.Info(ctx, "account created from external sign-in", "account_id", newID, "provider", id.Provider)
	return LinkResult{Account: a.Summary(), IsNewAccount: true}, nil
}

var usernameUnsafe = regexp.MustCompile(`[^a-z0-9._-]+`)

// freeUsername derives a username from the email local part, adding a
// numeric suffix while the candidate is taken.
func (l *ExternalLinker) freeUsername(ctx context.Context, email string) (string, error) {
	base := email
	if i := strings.IndexByte(base, '@'); i >= 0 {
		base = base[:i]
	}
	base = usernameUnsafe.ReplaceAllString(base, "")
	if base == "" {
		base = "member"
	}
	candidate := base
	for i := 2; i < maxUsernameAttempts+2; i++ {
		taken, err := l.Accounts.Exists(ctx, candidate, email)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(i)
	}
	return "", conflict("could not derive a free username")
}
