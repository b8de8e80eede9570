// Package service implements the authentication and credential-recovery
// flows: local signup and login, reset codes, external identity linking
// and the legacy security question.  Every flow is a stateless request /
// response operation over the stores declared here.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/ministry-portal/internal/model"
)

// AccountStore is the credential store.  Lookups return
// repository.ErrNotFound when nothing matches and Create returns
// repository.ErrDuplicate on a unique-key violation.
type AccountStore interface {
	Create(ctx context.Context, a model.Account) (uint64, error)
	GetByIdentifier(ctx context.Context, ident string) (model.Account, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByGoogleID(ctx context.Context, googleID string) (model.Account, error)
	Exists(ctx context.Context, username, email string) (bool, error)
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
	UpdatePassword(ctx context.Context, id uint64, hash string) error
	UpdatePasswordByEmail(ctx context.Context, email, hash string) error
}

// CodeStore holds at most one reset code per email.
type CodeStore interface {
	Insert(ctx context.Context, c model.ResetCode) error
	GetByEmail(ctx context.Context, email string) (model.ResetCode, error)
	DeleteByEmail(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// MinPasswordLen applies to signup, change and reset.
const MinPasswordLen = 8
