package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/ministry-portal/internal/model"
)

// ResetCodeRepo persists password reset codes, one row per email.
type ResetCodeRepo struct{ DB *sql.DB }

func NewResetCodeRepo(db *sql.DB) *ResetCodeRepo { return &ResetCodeRepo{DB: db} }

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Insert stores a new code.  Callers delete the previous row first; a
// leftover row from a concurrent issue surfaces as ErrDuplicate.
func (r *ResetCodeRepo) Insert(ctx context.Context, c model.ResetCode) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_reset_codes (email, code, expires_at) VALUES (?,?,?)",
		normEmail(c.Email), c.Code, c.ExpiresAt.UTC())
	return translate(err)
}

// GetByEmail returns the live row for email.
func (r *ResetCodeRepo) GetByEmail(ctx context.Context, email string) (model.ResetCode, error) {
	var c model.ResetCode
	err := r.DB.QueryRowContext(ctx,
		"SELECT email, code, expires_at, created_at FROM password_reset_codes WHERE email=? LIMIT 1",
		normEmail(email)).Scan(&c.Email, &c.Code, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return model.ResetCode{}, translate(err)
	}
	return c, nil
}

// DeleteByEmail removes any row for email.  Deleting nothing is not an error.
func (r *ResetCodeRepo) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM password_reset_codes WHERE email=?", normEmail(email))
	return err
}

// DeleteExpired purges rows whose expiry is at or before now and returns
// how many were removed.
func (r *ResetCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM password_reset_codes WHERE expires_at<=?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
