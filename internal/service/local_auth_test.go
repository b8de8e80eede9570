package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ministry-portal/internal/model"
)

func TestLocalAuth_Signup(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SignupInput)
		wantErr error
	}{
		{name: "valid input creates unverified account"},
		{name: "missing username", mutate: func(in *SignupInput) { in.Username = " " }, wantErr: ErrValidation},
		{name: "missing answer", mutate: func(in *SignupInput) { in.SecurityAnswer = "  " }, wantErr: ErrValidation},
		{name: "short password", mutate: func(in *SignupInput) { in.Password, in.ConfirmPassword = "short", "short" }, wantErr: ErrValidation},
		{name: "mismatched confirmation", mutate: func(in *SignupInput) { in.ConfirmPassword = "Passw0rd?" }, wantErr: ErrValidation},
		{name: "bad email", mutate: func(in *SignupInput) { in.Email = "not-an-email" }, wantErr: ErrValidation},
		{name: "display name with address", mutate: func(in *SignupInput) { in.Email = "Eve Attacker <eve@x.com>" }, wantErr: ErrValidation},
		{name: "angle-bracketed address", mutate: func(in *SignupInput) { in.Email = "<eve@x.com>" }, wantErr: ErrValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			in := aliceSignup()
			if tc.mutate != nil {
				tc.mutate(&in)
			}

			got, err := f.local.Signup(context.Background(), in)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, 0, f.accounts.count())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", got.Username)
			assert.Equal(t, model.StatusUnverified, got.Status)
			assert.Equal(t, "Alice Smith", got.DisplayName)
			assert.Equal(t, model.CredentialLocal, got.SignIn)

			stored, err := f.accounts.byID(context.Background(), got.ID)
			require.NoError(t, err)
			assert.NotEqual(t, "Passw0rd!", stored.Credential.PasswordHash)
			assert.True(t, testHasher().Verify(stored.SecurityAnswerHash, "blue"))
		})
	}
}

func TestLocalAuth_Signup_DuplicateLeavesFirstUnchanged(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.local.Signup(ctx, aliceSignup())
	require.NoError(t, err)
	before, _ := f.accounts.byID(ctx, first.ID)

	again := aliceSignup()
	again.Email = "other@x.com"
	again.Password, again.ConfirmPassword = "Different1!", "Different1!"
	_, err = f.local.Signup(ctx, again)
	assert.ErrorIs(t, err, ErrConflict)

	after, _ := f.accounts.byID(ctx, first.ID)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, f.accounts.count())
}

// racingAccounts reports no existing account so the insert hits the
// unique key, as with two concurrent signups.
type racingAccounts struct{ *fakeAccounts }

func (racingAccounts) Exists(context.Context, string, string) (bool, error) { return false, nil }

func TestLocalAuth_Signup_UniqueViolationIsConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.local.Signup(ctx, aliceSignup())
	require.NoError(t, err)

	f.local.Accounts = racingAccounts{f.accounts}
	_, err = f.local.Signup(ctx, aliceSignup())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLocalAuth_Login_GenericFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.local.Signup(ctx, aliceSignup())
	require.NoError(t, err)

	_, wrongPass := f.local.Login(ctx, "alice", "nope-nope")
	_, noUser := f.local.Login(ctx, "mallory", "Passw0rd!")

	require.ErrorIs(t, wrongPass, ErrAuth)
	require.ErrorIs(t, noUser, ErrAuth)
	assert.Equal(t, wrongPass.Error(), noUser.Error())
	assert.Equal(t, MsgInvalidCredentials, noUser.Error())
}

func TestLocalAuth_Login_DeactivatedIsDistinct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acc, err := f.local.Signup(ctx, aliceSignup())
	require.NoError(t, err)
	f.accounts.mutate(acc.ID, func(a *model.Account) { a.IsActive = false })

	_, err = f.local.Login(ctx, "alice", "Passw0rd!")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, MsgDeactivated, err.Error())

	_, err = f.local.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestLocalAuth_Login_ByEmailUpdatesLastLogin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acc, err := f.local.Signup(ctx, aliceSignup())
	require.NoError(t, err)

	got, err := f.local.Login(ctx, "ALICE@x.com", "Passw0rd!")
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, got.LastLoginAt.Equal(f.clock.Now()))
	assert.Equal(t, model.DefaultRole, got.Role)

	stored, _ := f.accounts.byID(ctx, acc.ID)
	require.NotNil(t, stored.LastLoginAt)
}

func TestLocalAuth_Login_LastLoginFailureIsIgnored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.local.Signup(ctx, aliceSignup())
	require.NoError(t, err)
	f.accounts.touchErr = errors.New("db down")

	got, err := f.local.Login(ctx, "alice", "Passw0rd!")
	require.NoError(t, err)
	assert.Nil(t, got.LastLoginAt)
}

func TestLocalAuth_Login_ExternalOnlyAccount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.linker.Link(ctx, ExternalIdentity{ExternalID: "g-1", Email: "g@x.com"}, ModeSignup)
	require.NoError(t, err)

	_, err = f.local.Login(ctx, "g@x.com", "anything-at-all")
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, MsgInvalidCredentials, err.Error())
}

func TestLocalAuth_Login_StoreError(t *testing.T) {
	f := newFixture()
	f.accounts.getErr = errors.New("db down")

	_, err := f.local.Login(context.Background(), "alice", "Passw0rd!")
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestLocalAuth_ChangePassword(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.local.Signup(ctx, aliceSignup())
	require.NoError(t, err)

	assert.ErrorIs(t, f.local.ChangePassword(ctx, "alice", "Passw0rd!", "short"), ErrValidation)
	assert.ErrorIs(t, f.local.ChangePassword(ctx, "alice", "wrong-current", "NewPass1!"), ErrAuth)

	require.NoError(t, f.local.ChangePassword(ctx, "alice", "Passw0rd!", "NewPass1!"))

	_, err = f.local.Login(ctx, "alice", "Passw0rd!")
	assert.ErrorIs(t, err, ErrAuth)
	_, err = f.local.Login(ctx, "alice", "NewPass1!")
	assert.NoError(t, err)
}
