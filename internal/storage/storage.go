// Package storage defines the persisted domain records and the Postgres
// repository behind the quota ledger, file lifecycle, activity log and
// query layer. All cross-request coordination happens here through
// single-statement atomic updates or short transactions, never through
// in-process state.
package storage

import (
	"time"

	"github.com/google/uuid"
)

// User carries the per-user storage ledger. StorageUsedBytes is adjusted
// only through AddUsage and the transactional file operations.
type User struct {
	ID               string
	StorageUsedBytes int64
	CreatedAt        time.Time
}

// File is a stored file record. A nil TrashedAt means the file is active;
// purge deletes the row rather than recording a third state.
type File struct {
	ID          uuid.UUID
	OwnerID     string
	ObjectKey   string
	DisplayName string
	SizeBytes   int64
	ContentType string
	Starred     bool
	CreatedAt   time.Time
	TrashedAt   *time.Time
}

// Trashed reports whether the file currently sits in the trash.
func (f File) Trashed() bool {
	return f.TrashedAt != nil
}

// ListState selects which slice of a user's files a listing returns.
type ListState string

const (
	ListActive  ListState = "active"
	ListTrashed ListState = "trashed"
	ListStarred ListState = "starred"
)

// Action tags an activity event.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionView     Action = "view"
	ActionDownload Action = "download"
	ActionRename   Action = "rename"
	ActionDelete   Action = "delete"
	ActionRestore  Action = "restore"
)

// ActivityEvent is an append-only audit entry. Events are never updated
// or deleted; FileID may reference a file that has since been purged.
type ActivityEvent struct {
	ID        uuid.UUID
	OwnerID   string
	FileID    uuid.UUID
	Action    Action
	FileName  string
	Metadata  map[string]any
	CreatedAt time.Time
}

// RecentFile is a live file joined with the timestamp of its most recent
// upload, view or rename event.
type RecentFile struct {
	File
	LastActivityAt time.Time
}
