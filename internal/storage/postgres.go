package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skystash/skystash/internal/pg"
)

// Postgres implements every store interface the domain services consume.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureUser lazily provisions the ledger row on first use. Idempotent.
func (p *Postgres) EnsureUser(ctx context.Context, userID string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// UserUsage returns the bytes currently counted against the user.
func (p *Postgres) UserUsage(ctx context.Context, userID string) (int64, error) {
	var used int64
	err := p.pool.QueryRow(ctx,
		`SELECT storage_used_bytes FROM users WHERE id = $1`, userID).Scan(&used)
	if pg.IsNotFoundError(err) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read user usage: %w", err)
	}
	return used, nil
}

// AddUsage atomically adjusts the user's counted bytes by a signed delta.
// The WHERE clause rejects adjustments that would take usage negative, so
// a duplicate release cannot corrupt the ledger.
func (p *Postgres) AddUsage(ctx context.Context, userID string, delta int64) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE users
		    SET storage_used_bytes = storage_used_bytes + $2
		  WHERE id = $1 AND storage_used_bytes + $2 >= 0`,
		userID, delta)
	if err != nil {
		return fmt.Errorf("adjust usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := p.UserUsage(ctx, userID); errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return ErrNegativeUsage
	}
	return nil
}

// CreateFileCommitUsage inserts the file record and charges its size to
// the owner's ledger in one transaction. The unique (owner_id, object_key)
// index arbitrates concurrent completions: the loser gets
// ErrObjectKeyExists and must not re-charge quota.
func (p *Postgres) CreateFileCommitUsage(ctx context.Context, f File) (File, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return File{}, fmt.Errorf("begin create file tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`INSERT INTO files (id, owner_id, object_key, display_name, size_bytes, content_type, starred)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		 RETURNING id, owner_id, object_key, display_name, size_bytes, content_type, starred, created_at, trashed_at`,
		f.ID, f.OwnerID, f.ObjectKey, f.DisplayName, f.SizeBytes, f.ContentType)

	created, err := scanFile(row)
	if pg.IsDuplicateKeyError(err) {
		return File{}, ErrObjectKeyExists
	}
	if err != nil {
		return File{}, fmt.Errorf("insert file: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users SET storage_used_bytes = storage_used_bytes + $2 WHERE id = $1`,
		f.OwnerID, f.SizeBytes)
	if err != nil {
		return File{}, fmt.Errorf("commit usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return File{}, ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return File{}, fmt.Errorf("commit create file tx: %w", err)
	}
	return created, nil
}

// PurgeFileReleaseUsage deletes a trashed file record and releases its
// bytes from the ledger in one transaction. Deleting is conditional on
// the trashed state so two racing purges resolve to exactly one release.
func (p *Postgres) PurgeFileReleaseUsage(ctx context.Context, ownerID string, fileID uuid.UUID) (File, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return File{}, fmt.Errorf("begin purge tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`DELETE FROM files
		  WHERE id = $1 AND owner_id = $2 AND trashed_at IS NOT NULL
		 RETURNING id, owner_id, object_key, display_name, size_bytes, content_type, starred, created_at, trashed_at`,
		fileID, ownerID)

	purged, err := scanFile(row)
	if pg.IsNotFoundError(err) {
		return File{}, p.resolveMissing(ctx, ownerID, fileID)
	}
	if err != nil {
		return File{}, fmt.Errorf("delete file: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users
		    SET storage_used_bytes = storage_used_bytes - $2
		  WHERE id = $1 AND storage_used_bytes - $2 >= 0`,
		ownerID, purged.SizeBytes)
	if err != nil {
		return File{}, fmt.Errorf("release usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return File{}, ErrNegativeUsage
	}

	if err := tx.Commit(ctx); err != nil {
		return File{}, fmt.Errorf("commit purge tx: %w", err)
	}
	return purged, nil
}

// resolveMissing distinguishes a conditional update that matched no rows:
// a record the caller owns in the wrong state is a state conflict, while
// anything else (absent or foreign) reports not found.
func (p *Postgres) resolveMissing(ctx context.Context, ownerID string, fileID uuid.UUID) error {
	_, err := p.FileByID(ctx, ownerID, fileID)
	if err == nil {
		return ErrInvalidFileState
	}
	if errors.Is(err, ErrFileNotFound) {
		return ErrFileNotFound
	}
	return err
}

func scanFile(row pgx.Row) (File, error) {
	var f File
	err := row.Scan(&f.ID, &f.OwnerID, &f.ObjectKey, &f.DisplayName, &f.SizeBytes,
		&f.ContentType, &f.Starred, &f.CreatedAt, &f.TrashedAt)
	return f, err
}
