package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auth"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/tokencache"
	"github.com/google/uuid"
)

// --- clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// --- store ---

// memStore is an in-memory users + tokens store shared by every handle.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken

	createErr error
	revokeErr error
	findErr   error
	userErr   error
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]*models.User{},
		tokens: map[string]*models.RefreshToken{},
	}
}

func (s *memStore) addUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memStore) token(hash string) (models.RefreshToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[hash]
	if !ok {
		return models.RefreshToken{}, false
	}
	return *t, true
}

func (s *memStore) snapshot() map[string]models.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.RefreshToken, len(s.tokens))
	for k, v := range s.tokens {
		out[k] = *v
	}
	return out
}

func (s *memStore) restore(snap map[string]models.RefreshToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]*models.RefreshToken, len(snap))
	for k, v := range snap {
		v := v
		s.tokens[k] = &v
	}
}

type fakeUsersRepo struct{ s *memStore }

func (r fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	u.ID = uuid.NewString()
	u.Active = true
	r.s.addUser(u)
	return u, nil
}

func (r fakeUsersRepo) FindActiveByUsername(_ context.Context, username string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.userErr != nil {
		return nil, r.s.userErr
	}
	for _, u := range r.s.users {
		if u.UserName == username && u.Active {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r fakeUsersRepo) FindActiveByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.userErr != nil {
		return nil, r.s.userErr
	}
	u, ok := r.s.users[id]
	if !ok || !u.Active {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeTokensRepo struct{ s *memStore }

func (r fakeTokensRepo) Create(_ context.Context, t *models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createErr != nil {
		return fmt.Errorf("db error: %w", r.s.createErr)
	}
	if _, dup := r.s.tokens[t.TokenHash]; dup {
		return errors.New("db error: duplicate token_hash")
	}
	t.ID = uuid.NewString()
	cp := *t
	r.s.tokens[t.TokenHash] = &cp
	return nil
}

func (r fakeTokensRepo) FindByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.findErr != nil {
		return nil, r.s.findErr
	}
	t, ok := r.s.tokens[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r fakeTokensRepo) FindByHashForUpdate(ctx context.Context, hash string) (*models.RefreshToken, error) {
	return r.FindByHash(ctx, hash)
}

func (r fakeTokensRepo) Revoke(_ context.Context, hash string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.revokeErr != nil {
		return false, r.s.revokeErr
	}
	t, ok := r.s.tokens[hash]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	return true, nil
}

func (r fakeTokensRepo) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.revokeErr != nil {
		return 0, r.s.revokeErr
	}
	var n int64
	for _, t := range r.s.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

func (r fakeTokensRepo) ListActive(_ context.Context, now time.Time, limit int) ([]*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.RefreshToken
	for _, t := range r.s.tokens {
		if !t.Revoked && t.ExpiresAt.After(now) && len(out) < limit {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeRepoManager struct{ s *memStore }

func (m fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return fakeUsersRepo{m.s} }
func (m fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository {
	return fakeTokensRepo{m.s}
}

// fakeTransactor serializes units of work, standing in for the row lock, and
// restores the token table when fn fails.
type fakeTransactor struct {
	s  *memStore
	mu sync.Mutex
}

func (t *fakeTransactor) Conn() dbx.DBTX { return nil }

func (t *fakeTransactor) InTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.s.snapshot()
	if err := fn(ctx, nil); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

// --- signer ---

type fakeSigner struct {
	now func() time.Time
	err error
}

func (f fakeSigner) Sign(username, userID string) (string, time.Time, error) {
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	return "access-" + username + "-" + uuid.NewString(), f.now().Add(30 * time.Minute), nil
}

type fakeParser struct {
	claims *auth.Claims
	err    error
}

func (f fakeParser) Parse(string) (*auth.Claims, error) {
	return f.claims, f.err
}

// --- fixture ---

type fixture struct {
	clock      *fakeClock
	store      *memStore
	tx         *fakeTransactor
	repos      fakeRepoManager
	cache      *tokencache.Cache
	issuer     *TokenIssuer
	rotator    *RefreshRotator
	revocation *RevocationManager
	user       *models.User
}

func newFixture() *fixture {
	clock := newFakeClock()
	store := newMemStore()
	log := logging.NewNopLogger()

	f := &fixture{
		clock: clock,
		store: store,
		tx:    &fakeTransactor{s: store},
		repos: fakeRepoManager{s: store},
		cache: tokencache.New(tokencache.Config{Capacity: 100, TTL: 7*24*time.Hour + 5*time.Minute},
			log, tokencache.WithClock(clock.Now)),
	}
	f.user = &models.User{ID: "u-1", UserName: "alice", PasswordHash: "pw:secret", Active: true}
	store.addUser(f.user)

	f.issuer = NewTokenIssuer(fakeSigner{now: clock.Now}, f.tx, f.repos, f.cache, 7*24*time.Hour, log, WithClock(clock.Now))
	f.rotator = NewRefreshRotator(f.tx, f.repos, f.cache, f.issuer, NewDeviceFingerprintValidator(), log, WithClock(clock.Now))
	f.revocation = NewRevocationManager(f.tx, f.repos, f.cache, log)
	return f
}

// plainVerifier accepts hashes of the form "pw:<password>".
func plainVerifier(password, encoded string) (bool, error) {
	if encoded == "" {
		return false, nil
	}
	if len(encoded) < 3 || encoded[:3] != "pw:" {
		return false, errors.New("bad hash")
	}
	return encoded[3:] == password, nil
}
