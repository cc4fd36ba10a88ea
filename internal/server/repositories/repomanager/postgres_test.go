package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/users"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// stubGoose swaps the goose seams for the duration of the test.
func stubGoose(t *testing.T,
	up func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error,
	version func(ctx context.Context, db *sql.DB) (int64, error)) {
	t.Helper()
	origUp, origVersion := gooseUpContext, gooseVersionContext
	gooseUpContext, gooseVersionContext = up, version
	t.Cleanup(func() { gooseUpContext, gooseVersionContext = origUp, origVersion })
}

func TestNewPostgresRepositoryManager(t *testing.T) {
	m, err := NewPostgresRepositoryManager(newDB(t))
	require.NoError(t, err)
	assert.NotNil(t, m)

	_, err = NewPostgresRepositoryManager(nil)
	assert.Error(t, err)
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db := newDB(t)
	m := &PostgresRepositoryManager{}

	assert.IsType(t, &users.PostgresRepository{}, m.Users(db))
	assert.IsType(t, &refreshtokens.PostgresRepository{}, m.RefreshTokens(db))
}

func TestRunMigrations_Success(t *testing.T) {
	db := newDB(t)

	var gotDB *sql.DB
	var gotDir string
	stubGoose(t,
		func(ctx context.Context, d *sql.DB, dir string, opts ...goose.OptionsFunc) error {
			gotDB, gotDir = d, dir
			return nil
		},
		func(context.Context, *sql.DB) (int64, error) {
			t.Fatal("version must not be read on success")
			return 0, nil
		})

	m, err := NewPostgresRepositoryManager(db)
	require.NoError(t, err)
	require.NoError(t, m.RunMigrations(context.Background(), db))

	assert.Same(t, db, gotDB)
	assert.Equal(t, ".", gotDir)
}

func TestRunMigrations_ErrorReportsVersion(t *testing.T) {
	db := newDB(t)
	boom := errors.New("boom")

	stubGoose(t,
		func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom },
		func(context.Context, *sql.DB) (int64, error) { return 1, nil })

	m, err := NewPostgresRepositoryManager(db)
	require.NoError(t, err)

	err = m.RunMigrations(context.Background(), db)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "schema at version 1")
}

func TestRunMigrations_ErrorWithoutVersion(t *testing.T) {
	db := newDB(t)
	boom := errors.New("boom")

	stubGoose(t,
		func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom },
		func(context.Context, *sql.DB) (int64, error) { return 0, errors.New("no version table") })

	m, err := NewPostgresRepositoryManager(db)
	require.NoError(t, err)

	err = m.RunMigrations(context.Background(), db)
	assert.Equal(t, boom, err)
}
