package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/iliyamo/ministry-portal/internal/logging"
	"github.com/iliyamo/ministry-portal/internal/model"
	"github.com/iliyamo/ministry-portal/internal/repository"
	"github.com/iliyamo/ministry-portal/internal/utils"
)

// SignupInput carries the fields collected by the signup form.
type SignupInput struct {
	Username         string
	Email            string
	Password         string
	ConfirmPassword  string
	FirstName        string
	LastName         string
	SecurityQuestion string
	SecurityAnswer   string
}

// LocalAuth handles password-based signup, login and password change.
type LocalAuth struct {
	Accounts AccountStore
	Hasher   utils.Hasher
	Log      logging.Logger
	Now      func() time.Time
}

func NewLocalAuth(accounts AccountStore, hasher utils.Hasher, log logging.Logger) *LocalAuth {
	return &LocalAuth{Accounts: accounts, Hasher: hasher, Log: log, Now: time.Now}
}

func (in *SignupInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.SecurityQuestion = strings.TrimSpace(in.SecurityQuestion)
}

func (in SignupInput) validate() error {
	switch {
	case in.Username == "" || in.Email == "" || in.Password == "" || in.ConfirmPassword == "":
		return validation("username, email, password and confirmPassword are required")
	case in.SecurityQuestion == "" || utils.NormalizeAnswer(in.SecurityAnswer) == "":
		return validation("securityQuestion and securityAnswer are required")
	case len(in.Password) < MinPasswordLen:
		return validation(MsgPasswordTooShort)
	case in.Password != in.ConfirmPassword:
		return validation("passwords do not match")
	}
	// ParseAddress also accepts "Name <addr>"; only a bare address is stored.
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return validation("invalid email address")
	}
	return nil
}

// Signup creates an unverified local account.
func (s *LocalAuth) Signup(ctx context.Context, in SignupInput) (model.AccountSummary, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return model.AccountSummary{}, err
	}

	exists, err := s.Accounts.Exists(ctx, in.Username, in.Email)
	if err != nil {
		return model.AccountSummary{}, fmt.Errorf("check existing account: %w", err)
	}
	if exists {
		return model.AccountSummary{}, conflict("username or email already registered")
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return model.AccountSummary{}, fmt.Errorf("hash password: %w", err)
	}
	answerHash, err := s.Hasher.Hash(utils.NormalizeAnswer(in.SecurityAnswer))
	if err != nil {
		return model.AccountSummary{}, fmt.Errorf("hash security answer: %w", err)
	}

	a := model.Account{
		Username:           in.Username,
		Email:              in.Email,
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		DisplayName:        displayName(in.FirstName, in.LastName, in.Username),
		Credential:         model.LocalCredential(hash),
		SecurityQuestion:   in.SecurityQuestion,
		SecurityAnswerHash: answerHash,
		Role:               model.DefaultRole,
		Status:             model.StatusUnverified,
		IsActive:           true,
	}
	id, err := s.Accounts.Create(ctx, a)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.AccountSummary{}, conflict("username or email already registered")
		}
		return model.AccountSummary{}, fmt.Errorf("create account: %w", err)
	}
	a.ID = id
	s.Log.Info(ctx, "account created", "account_id", id, "sign_in", a.Credential.Kind)
	return a.Summary(), nil
}

// Login checks the password of the account named by identifier (username
// or email).
func (s *LocalAuth) Login(ctx context.Context, identifier, password string) (model.AccountSummary, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return model.AccountSummary{}, validation("username/email and password are required")
	}
	a, err := s.authenticate(ctx, identifier, password)
	if err != nil {
		return model.AccountSummary{}, err
	}
	if !active(a) {
		return model.AccountSummary{}, forbidden(MsgDeactivated)
	}
	touchLastLogin(ctx, s.Accounts, s.Log, &a, s.Now())
	return a.Summary(), nil
}

// ChangePassword replaces the password after re-checking the current one.
// Existing client-held sessions are not invalidated.
func (s *LocalAuth) ChangePassword(ctx context.Context, identifier, current, next string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || current == "" || next == "" {
		return validation("username/email, currentPassword and newPassword are required")
	}
	if len(next) < MinPasswordLen {
		return validation(MsgPasswordTooShort)
	}
	a, err := s.authenticate(ctx, identifier, current)
	if err != nil {
		return err
	}
	if !active(a) {
		return forbidden(MsgDeactivated)
	}
	hash, err := s.Hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Accounts.UpdatePassword(ctx, a.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.Log.Info(ctx, "password changed", "account_id", a.ID)
	return nil
}

// authenticate returns the same AuthError for an unknown identifier, an
// account without a local password and a wrong password.
func (s *LocalAuth) authenticate(ctx context.Context, identifier, password string) (model.Account, error) {
	a, err := s.Accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, authFailed(MsgInvalidCredentials)
		}
		return model.Account{}, fmt.Errorf("load account: %w", err)
	}
	if !a.Credential.HasPassword() || !s.Hasher.Verify(a.Credential.PasswordHash, password) {
		return model.Account{}, authFailed(MsgInvalidCredentials)
	}
	return a, nil
}

func active(a model.Account) bool {
	return a.IsActive && a.Status != model.StatusDeactivated
}

// touchLastLogin is best-effort: a failed update is logged and the sign-in
// still succeeds.
func touchLastLogin(ctx context.Context, accounts AccountStore, log logging.Logger, a *model.Account, now time.Time) {
	now = now.UTC()
	if err := accounts.TouchLastLogin(ctx, a.ID, now); err != nil {
		log.Warn(ctx, "update last login failed", "account_id", a.ID, "err", err)
		return
	}
	a.LastLoginAt = &now
}

func displayName(first, last, fallback string) string {
	if n := strings.TrimSpace(first + " " + last); n != "" {
		return n
	}
	return fallback
}
