package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityQuestions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.local.Signup(ctx, aliceSignup())
	require.NoError(t, err)
	_, err = f.linker.Link(ctx, googleUser(), ModeSignup)
	require.NoError(t, err)

	var sq SecurityQuestionRecovery = NewSecurityQuestions(f.accounts, testHasher())

	q, err := sq.Question(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Favourite colour?", q)

	assert.NoError(t, sq.VerifyAnswer(ctx, "alice", "  BLUE "))
	assert.ErrorIs(t, sq.VerifyAnswer(ctx, "alice", "red"), ErrAuth)
	assert.ErrorIs(t, sq.VerifyAnswer(ctx, "nobody", "blue"), ErrAuth)

	_, err = sq.Question(ctx, "grace")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = sq.Question(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}
