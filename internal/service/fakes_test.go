package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/ministry-portal/internal/logging"
	"github.com/iliyamo/ministry-portal/internal/model"
	"github.com/iliyamo/ministry-portal/internal/repository"
	"github.com/iliyamo/ministry-portal/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// fakeAccounts enforces the same unique keys as the accounts table.
type fakeAccounts struct {
	mu       sync.Mutex
	nextID   uint64
	rows     map[uint64]model.Account
	touchErr error
	getErr   error
	creates  int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{nextID: 1, rows: map[uint64]model.Account{}}
}

func (f *fakeAccounts) Create(_ context.Context, a model.Account) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.Email = strings.ToLower(a.Email)
	if !a.Credential.Valid() {
		return 0, repository.ErrNoCredential
	}
	for _, r := range f.rows {
		if r.Username == a.Username || r.Email == a.Email ||
			(a.Credential.ProviderID != "" && r.Credential.ProviderID == a.Credential.ProviderID) {
			return 0, repository.ErrDuplicate
		}
	}
	a.ID = f.nextID
	f.nextID++
	f.rows[a.ID] = a
	f.creates++
	return a.ID, nil
}

func (f *fakeAccounts) find(match func(model.Account) bool) (model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return model.Account{}, f.getErr
	}
	for _, r := range f.rows {
		if match(r) {
			return r, nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

// byID is a test lookup; the flows never load accounts by id.
func (f *fakeAccounts) byID(_ context.Context, id uint64) (model.Account, error) {
	return f.find(func(a model.Account) bool { return a.ID == id })
}

func (f *fakeAccounts) GetByIdentifier(_ context.Context, ident string) (model.Account, error) {
	return f.find(func(a model.Account) bool { return a.Username == ident || a.Email == strings.ToLower(ident) })
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (model.Account, error) {
	return f.find(func(a model.Account) bool { return a.Email == strings.ToLower(email) })
}

func (f *fakeAccounts) GetByGoogleID(_ context.Context, id string) (model.Account, error) {
	return f.find(func(a model.Account) bool { return a.Credential.ProviderID == id })
}

func (f *fakeAccounts) Exists(_ context.Context, username, email string) (bool, error) {
	_, err := f.find(func(a model.Account) bool { return a.Username == username || a.Email == strings.ToLower(email) })
	return err == nil, nil
}

func (f *fakeAccounts) TouchLastLogin(_ context.Context, id uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	a := f.rows[id]
	a.LastLoginAt = &at
	f.rows[id] = a
	return nil
}

func (f *fakeAccounts) UpdatePassword(_ context.Context, id uint64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Credential = model.CredentialFrom(hash, a.Credential.ProviderID)
	f.rows[id] = a
	return nil
}

func (f *fakeAccounts) UpdatePasswordByEmail(ctx context.Context, email, hash string) error {
	a, err := f.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return f.UpdatePassword(ctx, a.ID, hash)
}

func (f *fakeAccounts) mutate(id uint64, fn func(*model.Account)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.rows[id]
	fn(&a)
	f.rows[id] = a
}

func (f *fakeAccounts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// fakeCodes keys rows by email like the primary key of the table.
type fakeCodes struct {
	mu   sync.Mutex
	rows map[string]model.ResetCode
}

func newFakeCodes() *fakeCodes { return &fakeCodes{rows: map[string]model.ResetCode{}} }

func (f *fakeCodes) Insert(_ context.Context, c model.ResetCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[c.Email]; ok {
		return repository.ErrDuplicate
	}
	f.rows[c.Email] = c
	return nil
}

func (f *fakeCodes) GetByEmail(_ context.Context, email string) (model.ResetCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[email]
	if !ok {
		return model.ResetCode{}, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeCodes) DeleteByEmail(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, email)
	return nil
}

func (f *fakeCodes) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, c := range f.rows {
		if c.Expired(now) {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeCodes) has(email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[email]
	return ok
}

// clock is a settable time source.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock { return &clock{t: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)} }

func testHasher() utils.Hasher { return utils.NewBcryptHasher(bcrypt.MinCost) }

type fixture struct {
	accounts *fakeAccounts
	codes    *fakeCodes
	clock    *clock
	local    *LocalAuth
	recovery *Recovery
	linker   *ExternalLinker
}

func newFixture() *fixture {
	f := &fixture{accounts: newFakeAccounts(), codes: newFakeCodes(), clock: newClock()}
	log := logging.Discard()
	h := testHasher()

	f.local = NewLocalAuth(f.accounts, h, log)
	f.local.Now = f.clock.Now

	f.recovery = NewRecovery(f.accounts, f.codes, h, DefaultCodeTTL, log)
	f.recovery.Now = f.clock.Now

	f.linker = NewExternalLinker(f.accounts, log)
	f.linker.Now = f.clock.Now
	return f
}

func aliceSignup() SignupInput {
	return SignupInput{
		Username:         "alice",
		Email:            "alice@x.com",
		Password:         "Passw0rd!",
		ConfirmPassword:  "Passw0rd!",
		FirstName:        "Alice",
		LastName:         "Smith",
		SecurityQuestion: "Favourite colour?",
		SecurityAnswer:   "blue",
	}
}
