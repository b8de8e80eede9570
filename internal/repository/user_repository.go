package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/ministry-portal/internal/model"
)

// AccountRepo reads and writes the 'accounts' table.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountColumns = `id,username,email,first_name,last_name,display_name,password_hash,google_id,
security_question,security_answer_hash,role,status,is_active,last_login_at,created_at,updated_at`

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanAccount(row interface{ Scan(...any) error }) (model.Account, error) {
	var (
		a          model.Account
		hash       sql.NullString
		googleID   sql.NullString
		answerHash sql.NullString
		status     string
		lastLogin  sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &a.DisplayName,
		&hash, &googleID, &a.SecurityQuestion, &answerHash, &a.Role, &status, &a.IsActive,
		&lastLogin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Account{}, translate(err)
	}
	a.Credential = model.CredentialFrom(hash.String, googleID.String)
	a.SecurityAnswerHash = answerHash.String
	a.Status = model.AccountStatus(status)
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return a, nil
}

// Create inserts the account and returns its ID.  A unique-key violation
// on username, email or google_id yields ErrDuplicate; an account without
// any credential is refused with ErrNoCredential before reaching MySQL.
func (r *AccountRepo) Create(ctx context.Context, a model.Account) (uint64, error) {
	if !a.Credential.Valid() {
		return 0, ErrNoCredential
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO accounts (username,email,first_name,last_name,display_name,password_hash,google_id,
security_question,security_answer_hash,role,status,is_active) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.Username, strings.ToLower(strings.TrimSpace(a.Email)), a.FirstName, a.LastName, a.DisplayName,
		nullable(a.Credential.PasswordHash), nullable(a.Credential.ProviderID),
		a.SecurityQuestion, nullable(a.SecurityAnswerHash), a.Role, string(a.Status), a.IsActive)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByIdentifier fetches an account whose username or email equals ident.
// Emails are compared lower-cased.
func (r *AccountRepo) GetByIdentifier(ctx context.Context, ident string) (model.Account, error) {
	ident = strings.TrimSpace(ident)
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE username=? OR email=? LIMIT 1",
		ident, strings.ToLower(ident)))
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1",
		strings.ToLower(strings.TrimSpace(email))))
}

// GetByGoogleID fetches the account linked to a Google subject id.
func (r *AccountRepo) GetByGoogleID(ctx context.Context, googleID string) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE google_id=? LIMIT 1", googleID))
}

// Exists reports whether any account uses the username or the email.
func (r *AccountRepo) Exists(ctx context.Context, username, email string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM accounts WHERE username=? OR email=?",
		username, strings.ToLower(strings.TrimSpace(email))).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TouchLastLogin records a successful sign-in.
func (r *AccountRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE accounts SET last_login_at=? WHERE id=?", at.UTC(), id)
	return err
}

// UpdatePassword replaces the password hash of the account with id.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	return r.updateOne(ctx, "UPDATE accounts SET password_hash=? WHERE id=?", hash, id)
}

// UpdatePasswordByEmail replaces the password hash of the account owning email.
func (r *AccountRepo) UpdatePasswordByEmail(ctx context.Context, email, hash string) error {
	return r.updateOne(ctx, "UPDATE accounts SET password_hash=? WHERE email=?",
		hash, strings.ToLower(strings.TrimSpace(email)))
}

func (r *AccountRepo) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
