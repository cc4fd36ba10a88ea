package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// goose seams, replaced in tests.
var (
	gooseUpContext      = goose.UpContext
	gooseVersionContext = goose.GetDBVersionContext
)

// PostgresRepositoryManager hands out repositories bound to either the pool
// or a running transaction.
type PostgresRepositoryManager struct {
	migrationsDir string
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

// RunMigrations applies the embedded users and tokens migrations and
// returns an error naming the schema version it stopped at.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := gooseUpContext(ctx, db, m.migrationsDir); err != nil {
		version, verr := gooseVersionContext(ctx, db)
		if verr != nil {
			return err
		}
		return fmt.Errorf("schema at version %d: %w", version, err)
	}

	return nil
}

func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	if db == nil {
		return nil, fmt.Errorf("db error: nil database handle")
	}

	m := &PostgresRepositoryManager{migrationsDir: "."}

	return m, nil
}
