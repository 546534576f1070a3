// Package lifecycle owns the file state machine: active files move to the
// trash, trashed files are restored or purged, active files are renamed
// and starred. Every transition verifies ownership, and a record owned by
// someone else is indistinguishable from one that does not exist.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skystash/skystash/internal/activity"
	"github.com/skystash/skystash/internal/blob"
	"github.com/skystash/skystash/internal/storage"
)

type Config struct {
	// DownloadTTL bounds read credentials issued for downloads/previews.
	DownloadTTL time.Duration `env:"DOWNLOAD_CREDENTIAL_TTL" envDefault:"15m"`
}

// Store is the slice of the storage layer the state machine drives.
type Store interface {
	FileByID(ctx context.Context, ownerID string, fileID uuid.UUID) (storage.File, error)
	RenameFile(ctx context.Context, ownerID string, fileID uuid.UUID, name string) (storage.File, error)
	SetStarred(ctx context.Context, ownerID string, fileID uuid.UUID, starred bool) (storage.File, error)
	TrashFile(ctx context.Context, ownerID string, fileID uuid.UUID) (storage.File, error)
	RestoreFile(ctx context.Context, ownerID string, fileID uuid.UUID) (storage.File, error)
	PurgeFileReleaseUsage(ctx context.Context, ownerID string, fileID uuid.UUID) (storage.File, error)
}

// ObjectStore is the slice of the blob gateway the state machine needs.
type ObjectStore interface {
	Delete(ctx context.Context, objectKey string) error
	IssueReadCredential(ctx context.Context, objectKey string, ttl time.Duration, downloadName string) (string, error)
}

type Service struct {
	store    Store
	objects  ObjectStore
	recorder *activity.Recorder
	cfg      Config
	log      *slog.Logger
}

func NewService(store Store, objects ObjectStore, recorder *activity.Recorder, cfg Config, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		objects:  objects,
		recorder: recorder,
		cfg:      cfg,
		log:      log,
	}
}

// Rename updates the display name of an active file and records the old
// and new names in the activity log.
func (s *Service) Rename(ctx context.Context, userID string, fileID uuid.UUID, newName string) (storage.File, error) {
	if err := blob.ValidateDisplayName(newName); err != nil {
		return storage.File{}, err
	}

	before, err := s.store.FileByID(ctx, userID, fileID)
	if err != nil {
		return storage.File{}, err
	}

	renamed, err := s.store.RenameFile(ctx, userID, fileID, newName)
	if err != nil {
		return storage.File{}, err
	}

	s.recorder.Record(ctx, userID, renamed.ID, storage.ActionRename, renamed.DisplayName,
		activity.RenameMetadata(before.DisplayName, renamed.DisplayName))
	return renamed, nil
}

// SetStarred toggles the starred flag on an active file. Starring is not
// an audited action.
func (s *Service) SetStarred(ctx context.Context, userID string, fileID uuid.UUID, starred bool) (storage.File, error) {
	return s.store.SetStarred(ctx, userID, fileID, starred)
}

// Trash soft-deletes an active file. The bytes remain counted against the
// owner's quota: trashed files still occupy real storage.
func (s *Service) Trash(ctx context.Context, userID string, fileID uuid.UUID) (storage.File, error) {
	trashed, err := s.store.TrashFile(ctx, userID, fileID)
	if err != nil {
		return storage.File{}, err
	}

	s.recorder.Record(ctx, userID, trashed.ID, storage.ActionDelete, trashed.DisplayName, nil)
	return trashed, nil
}

// Restore moves a trashed file back to active.
func (s *Service) Restore(ctx context.Context, userID string, fileID uuid.UUID) (storage.File, error) {
	restored, err := s.store.RestoreFile(ctx, userID, fileID)
	if err != nil {
		return storage.File{}, err
	}

	s.recorder.Record(ctx, userID, restored.ID, storage.ActionRestore, restored.DisplayName, nil)
	return restored, nil
}

// Purge irreversibly removes a trashed file: the backing object first,
// then the record and the quota release in one transaction. Record
// deletion only proceeds once the store confirms the object is gone or
// already absent. No further activity event: the delete event from the
// trash transition remains as history.
func (s *Service) Purge(ctx context.Context, userID string, fileID uuid.UUID) error {
	f, err := s.store.FileByID(ctx, userID, fileID)
	if err != nil {
		return err
	}
	if !f.Trashed() {
		return fmt.Errorf("%w: purge requires a trashed file", storage.ErrInvalidFileState)
	}

	if err := s.objects.Delete(ctx, f.ObjectKey); err != nil {
		s.log.ErrorContext(ctx, "failed to delete object during purge",
			"error", err, "file_id", fileID.String())
		return err
	}

	_, err = s.store.PurgeFileReleaseUsage(ctx, userID, fileID)
	if errors.Is(err, storage.ErrFileNotFound) || errors.Is(err, storage.ErrInvalidFileState) {
		// A concurrent purge or restore won the race after the object was
		// deleted; the object delete is idempotent so nothing to undo.
		return err
	}
	return err
}

// Download issues a read credential for an active or trashed file and
// records a download event. Inline disposition records a view instead,
// which feeds the recency listing.
func (s *Service) Download(ctx context.Context, userID string, fileID uuid.UUID, inline bool) (string, error) {
	f, err := s.store.FileByID(ctx, userID, fileID)
	if err != nil {
		return "", err
	}

	downloadName := f.DisplayName
	if inline {
		downloadName = ""
	}

	url, err := s.objects.IssueReadCredential(ctx, f.ObjectKey, s.cfg.DownloadTTL, downloadName)
	if err != nil {
		return "", err
	}

	action := storage.ActionDownload
	if inline {
		action = storage.ActionView
	}
	s.recorder.Record(ctx, userID, f.ID, action, f.DisplayName, nil)

	return url, nil
}
