package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// InsertActivityBatch appends a batch of events in one round trip.
// Metadata maps encode to jsonb through pgx; nil stays NULL.
func (p *Postgres) InsertActivityBatch(ctx context.Context, events []ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, []any{e.ID, e.OwnerID, e.FileID, string(e.Action), e.FileName, e.Metadata, e.CreatedAt})
	}

	_, err := p.pool.CopyFrom(ctx,
		pgx.Identifier{"activity_events"},
		[]string{"id", "owner_id", "file_id", "action", "file_name", "metadata", "created_at"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("insert activity batch: %w", err)
	}
	return nil
}

// ListActivity returns one page of the user's activity feed, newest first.
func (p *Postgres) ListActivity(ctx context.Context, ownerID string, limit, offset int) ([]ActivityEvent, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, owner_id, file_id, action, file_name, metadata, created_at
		   FROM activity_events
		  WHERE owner_id = $1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []ActivityEvent
	for rows.Next() {
		var (
			e      ActivityEvent
			action string
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.FileID, &action, &e.FileName, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		e.Action = Action(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return out, nil
}
