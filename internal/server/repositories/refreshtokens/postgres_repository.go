// Package refreshtokens provides a PostgreSQL-backed repository for the
// tokens table.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, user_uuid, token_hash, issued_at, expires_at, revoked, device_fingerprint_hash`

func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO tokens (user_uuid, token_hash, issued_at, expires_at, revoked, device_fingerprint_hash)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING id
	`
	fp := sql.NullString{String: token.DeviceFingerprintHash, Valid: token.DeviceFingerprintHash != ""}

	err := r.db.QueryRowContext(ctx, query,
		token.UserID, token.TokenHash, token.IssuedAt, token.ExpiresAt, fp).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	query := `SELECT ` + selectColumns + ` FROM tokens WHERE token_hash = $1`
	return r.findOne(ctx, query, hash)
}

func (r *PostgresRepository) FindByHashForUpdate(ctx context.Context, hash string) (*models.RefreshToken, error) {
	query := `SELECT ` + selectColumns + ` FROM tokens WHERE token_hash = $1 FOR UPDATE`
	return r.findOne(ctx, query, hash)
}

func (r *PostgresRepository) findOne(ctx context.Context, query, hash string) (*models.RefreshToken, error) {
	token, err := scanToken(r.db.QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, hash string) (bool, error) {
	query := `
		UPDATE tokens SET revoked = TRUE
		WHERE token_hash = $1 AND revoked = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, hash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE tokens SET revoked = TRUE
		WHERE user_uuid = $1 AND revoked = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context, now time.Time, limit int) ([]*models.RefreshToken, error) {
	query := `SELECT ` + selectColumns + ` FROM tokens
		WHERE revoked = FALSE AND expires_at > $1
		ORDER BY issued_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var tokens []*models.RefreshToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tokens, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*models.RefreshToken, error) {
	var (
		t  models.RefreshToken
		fp sql.NullString
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt, &t.Revoked, &fp); err != nil {
		return nil, err
	}
	t.DeviceFingerprintHash = fp.String
	return &t, nil
}
