package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skystash/skystash/internal/pg"
)

const fileColumns = `id, owner_id, object_key, display_name, size_bytes, content_type, starred, created_at, trashed_at`

// FileByID loads a file the caller owns. Foreign and absent records are
// indistinguishable by design.
func (p *Postgres) FileByID(ctx context.Context, ownerID string, fileID uuid.UUID) (File, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1 AND owner_id = $2`,
		fileID, ownerID)
	f, err := scanFile(row)
	if pg.IsNotFoundError(err) {
		return File{}, ErrFileNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("read file: %w", err)
	}
	return f, nil
}

// FileByObjectKey looks up the record bound to an object key within the
// owner's namespace.
func (p *Postgres) FileByObjectKey(ctx context.Context, ownerID, objectKey string) (File, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE owner_id = $1 AND object_key = $2`,
		ownerID, objectKey)
	f, err := scanFile(row)
	if pg.IsNotFoundError(err) {
		return File{}, ErrFileNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("read file by object key: %w", err)
	}
	return f, nil
}

// RenameFile updates the display name of an active file.
func (p *Postgres) RenameFile(ctx context.Context, ownerID string, fileID uuid.UUID, name string) (File, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE files SET display_name = $3
		  WHERE id = $1 AND owner_id = $2 AND trashed_at IS NULL
		 RETURNING `+fileColumns,
		fileID, ownerID, name)
	f, err := scanFile(row)
	if pg.IsNotFoundError(err) {
		return File{}, p.resolveMissing(ctx, ownerID, fileID)
	}
	if err != nil {
		return File{}, fmt.Errorf("rename file: %w", err)
	}
	return f, nil
}

// SetStarred toggles the starred flag of an active file.
func (p *Postgres) SetStarred(ctx context.Context, ownerID string, fileID uuid.UUID, starred bool) (File, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE files SET starred = $3
		  WHERE id = $1 AND owner_id = $2 AND trashed_at IS NULL
		 RETURNING `+fileColumns,
		fileID, ownerID, starred)
	f, err := scanFile(row)
	if pg.IsNotFoundError(err) {
		return File{}, p.resolveMissing(ctx, ownerID, fileID)
	}
	if err != nil {
		return File{}, fmt.Errorf("star file: %w", err)
	}
	return f, nil
}

// TrashFile moves an active file to the trash. The trashed_at IS NULL
// guard is the compare-and-set that keeps two racing transitions from
// both succeeding against stale state.
func (p *Postgres) TrashFile(ctx context.Context, ownerID string, fileID uuid.UUID) (File, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE files SET trashed_at = now()
		  WHERE id = $1 AND owner_id = $2 AND trashed_at IS NULL
		 RETURNING `+fileColumns,
		fileID, ownerID)
	f, err := scanFile(row)
	if pg.IsNotFoundError(err) {
		return File{}, p.resolveMissing(ctx, ownerID, fileID)
	}
	if err != nil {
		return File{}, fmt.Errorf("trash file: %w", err)
	}
	return f, nil
}

// RestoreFile moves a trashed file back to active.
func (p *Postgres) RestoreFile(ctx context.Context, ownerID string, fileID uuid.UUID) (File, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE files SET trashed_at = NULL
		  WHERE id = $1 AND owner_id = $2 AND trashed_at IS NOT NULL
		 RETURNING `+fileColumns,
		fileID, ownerID)
	f, err := scanFile(row)
	if pg.IsNotFoundError(err) {
		return File{}, p.resolveMissing(ctx, ownerID, fileID)
	}
	if err != nil {
		return File{}, fmt.Errorf("restore file: %w", err)
	}
	return f, nil
}

// ListFiles returns one page of the user's files, newest first by the
// timestamp relevant to the requested state.
func (p *Postgres) ListFiles(ctx context.Context, ownerID string, state ListState, limit, offset int) ([]File, error) {
	var query string
	switch state {
	case ListTrashed:
		query = `SELECT ` + fileColumns + ` FROM files
		          WHERE owner_id = $1 AND trashed_at IS NOT NULL
		          ORDER BY trashed_at DESC LIMIT $2 OFFSET $3`
	case ListStarred:
		query = `SELECT ` + fileColumns + ` FROM files
		          WHERE owner_id = $1 AND starred AND trashed_at IS NULL
		          ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	default:
		query = `SELECT ` + fileColumns + ` FROM files
		          WHERE owner_id = $1 AND trashed_at IS NULL
		          ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	}

	rows, err := p.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	return collectFiles(rows)
}

// SearchFiles matches active files by display name. The pattern arrives
// pre-escaped; ESCAPE '\' makes the escaping unambiguous server-side.
func (p *Postgres) SearchFiles(ctx context.Context, ownerID, pattern string, limit int) ([]File, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+fileColumns+` FROM files
		  WHERE owner_id = $1 AND trashed_at IS NULL
		    AND display_name ILIKE '%' || $2 || '%' ESCAPE '\'
		  ORDER BY created_at DESC LIMIT $3`,
		ownerID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	defer rows.Close()

	return collectFiles(rows)
}

// RecentFiles derives the recency view: the newest upload, view or rename
// event per file, joined against live records. Events whose file has been
// purged or trashed since simply drop out of the join.
func (p *Postgres) RecentFiles(ctx context.Context, ownerID string, limit, offset int) ([]RecentFile, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT f.id, f.owner_id, f.object_key, f.display_name, f.size_bytes,
		        f.content_type, f.starred, f.created_at, f.trashed_at, a.last_activity_at
		   FROM (SELECT file_id, max(created_at) AS last_activity_at
		           FROM activity_events
		          WHERE owner_id = $1 AND action IN ('upload', 'view', 'rename')
		          GROUP BY file_id) a
		   JOIN files f ON f.id = a.file_id AND f.owner_id = $1 AND f.trashed_at IS NULL
		  ORDER BY a.last_activity_at DESC
		  LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list recent files: %w", err)
	}
	defer rows.Close()

	var out []RecentFile
	for rows.Next() {
		var rf RecentFile
		if err := rows.Scan(&rf.ID, &rf.OwnerID, &rf.ObjectKey, &rf.DisplayName,
			&rf.SizeBytes, &rf.ContentType, &rf.Starred, &rf.CreatedAt,
			&rf.TrashedAt, &rf.LastActivityAt); err != nil {
			return nil, fmt.Errorf("scan recent file: %w", err)
		}
		out = append(out, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recent files: %w", err)
	}
	return out, nil
}

func collectFiles(rows pgx.Rows) ([]File, error) {
	var out []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.ObjectKey, &f.DisplayName,
			&f.SizeBytes, &f.ContentType, &f.Starred, &f.CreatedAt, &f.TrashedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return out, nil
}
