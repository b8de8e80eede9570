package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/ministry-portal/internal/repository"
	"github.com/iliyamo/ministry-portal/internal/utils"
)

// SecurityQuestionRecovery is the legacy recovery path that predates reset
// codes.  It only answers whether the stored answer matches; it does not
// authorise a password reset.
type SecurityQuestionRecovery interface {
	Question(ctx context.Context, identifier string) (string, error)
	VerifyAnswer(ctx context.Context, identifier, answer string) error
}

// SecurityQuestions implements SecurityQuestionRecovery over the account store.
type SecurityQuestions struct {
	Accounts AccountStore
	Hasher   utils.Hasher
}

var _ SecurityQuestionRecovery = (*SecurityQuestions)(nil)

func NewSecurityQuestions(accounts AccountStore, hasher utils.Hasher) *SecurityQuestions {
	return &SecurityQuestions{Accounts: accounts, Hasher: hasher}
}

// Question returns the stored question.  The question has to be shown
// before it can be answered, so an unknown identifier is told apart from
// a known one, as SendCode does for emails.  The HTTP routes for both
// security-question calls sit behind the verify rate limit.
func (s *SecurityQuestions) Question(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", validation("username/email is required")
	}
	a, err := s.Accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", notFound("no security question on file")
		}
		return "", fmt.Errorf("load account: %w", err)
	}
	if a.SecurityAnswerHash == "" {
		return "", notFound("no security question on file")
	}
	return a.SecurityQuestion, nil
}

func (s *SecurityQuestions) VerifyAnswer(ctx context.Context, identifier, answer string) error {
	identifier = strings.TrimSpace(identifier)
	answer = utils.NormalizeAnswer(answer)
	if identifier == "" || answer == "" {
		return validation("username/email and answer are required")
	}
	a, err := s.Accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return authFailed("incorrect answer")
		}
		return fmt.Errorf("load account: %w", err)
	}
	if !s.Hasher.Verify(a.SecurityAnswerHash, answer) {
		return authFailed("incorrect answer")
	}
	return nil
}
