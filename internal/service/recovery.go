package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/ministry-portal/internal/logging"
	"github.com/iliyamo/ministry-portal/internal/model"
	"github.com/iliyamo/ministry-portal/internal/repository"
	"github.com/iliyamo/ministry-portal/internal/utils"
)

// DefaultCodeTTL is the validity window of a reset code.
const DefaultCodeTTL = 10 * time.Minute

// IssuedCode is handed to the notification channel.  It is never echoed
// back in an HTTP response.
type IssuedCode struct {
	Email       string
	Code        string
	DisplayName string
	ExpiresAt   time.Time
}

// Recovery runs the reset-code flow:
// Idle -> CodeIssued (SendCode) -> Verified (VerifyCode) -> Consumed (CompleteReset).
type Recovery struct {
	Accounts AccountStore
	Codes    CodeStore
	Hasher   utils.Hasher
	Log      logging.Logger
	TTL      time.Duration
	Now      func() time.Time
	NewCode  func() (string, error)
}

func NewRecovery(accounts AccountStore, codes CodeStore, hasher utils.Hasher, ttl time.Duration, log logging.Logger) *Recovery {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &Recovery{
		Accounts: accounts,
		Codes:    codes,
		Hasher:   hasher,
		Log:      log,
		TTL:      ttl,
		Now:      time.Now,
		NewCode:  utils.NewResetCode,
	}
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// SendCode replaces any code for email with a fresh one.  Resending is the
// same operation.
func (r *Recovery) SendCode(ctx context.Context, email string) (IssuedCode, error) {
	email = normalizeEmail(email)
	if email == "" {
		return IssuedCode{}, validation("email is required")
	}
	a, err := r.Accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return IssuedCode{}, notFound("no account registered with that email")
		}
		return IssuedCode{}, fmt.Errorf("load account: %w", err)
	}

	code, err := r.NewCode()
	if err != nil {
		return IssuedCode{}, err
	}
	// expires_at is a whole-second DATETIME; truncate so the stored expiry
	// and the one handed to the notifier agree.
	expiresAt := r.Now().UTC().Add(r.TTL).Truncate(time.Second)
	rec := model.ResetCode{Email: email, Code: code, ExpiresAt: expiresAt}

	// Delete and insert are separate statements.  A concurrent issue for
	// the same email can slip a row in between; replace it once so the
	// latest caller wins.
	for attempt := 0; ; attempt++ {
		if err := r.Codes.DeleteByEmail(ctx, email); err != nil {
			return IssuedCode{}, fmt.Errorf("delete previous code: %w", err)
		}
		err = r.Codes.Insert(ctx, rec)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) || attempt > 0 {
			return IssuedCode{}, fmt.Errorf("store code: %w", err)
		}
	}

	r.Log.Info(ctx, "reset code issued", "account_id", a.ID, "expires_at", rec.ExpiresAt)
	return IssuedCode{
		Email:       email,
		Code:        code,
		DisplayName: firstNonEmpty(a.DisplayName, displayName(a.FirstName, a.LastName, a.Username)),
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// VerifyCode checks code against the live record for email.  The record is
// kept on success so CompleteReset can consume it.
func (r *Recovery) VerifyCode(ctx context.Context, email, code string) error {
	_, err := r.check(ctx, normalizeEmail(email), strings.TrimSpace(code))
	return err
}

// CompleteReset re-checks the code, sets the new password on the account
// owning email and consumes the code.
func (r *Recovery) CompleteReset(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	if len(newPassword) < MinPasswordLen {
		return validation(MsgPasswordTooShort)
	}
	if _, err := r.check(ctx, email, strings.TrimSpace(code)); err != nil {
		return err
	}

	hash, err := r.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := r.Accounts.UpdatePasswordByEmail(ctx, email, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("no account registered with that email")
		}
		return fmt.Errorf("update password: %w", err)
	}
	if err := r.Codes.DeleteByEmail(ctx, email); err != nil {
		r.Log.Warn(ctx, "consume reset code failed", "err", err)
	}
	r.Log.Info(ctx, "password reset completed")
	return nil
}

// Purge deletes every expired code.  Used by the janitor.
func (r *Recovery) Purge(ctx context.Context) (int64, error) {
	return r.Codes.DeleteExpired(ctx, r.Now().UTC())
}

// check compares the code before looking at expiry, so a wrong code never
// reveals whether a record exists or has expired.  An expired record is
// deleted on first use.
func (r *Recovery) check(ctx context.Context, email, code string) (model.ResetCode, error) {
	if email == "" || code == "" {
		return model.ResetCode{}, validation("email and code are required")
	}
	rec, err := r.Codes.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.ResetCode{}, authFailed(MsgInvalidCode)
		}
		return model.ResetCode{}, fmt.Errorf("load code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return model.ResetCode{}, authFailed(MsgInvalidCode)
	}
	if rec.Expired(r.Now()) {
		if err := r.Codes.DeleteByEmail(ctx, email); err != nil {
			r.Log.Warn(ctx, "delete expired code failed", "err", err)
		}
		return model.ResetCode{}, expired(MsgCodeExpired)
	}
	return rec, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
