// Package upload orchestrates the two-phase upload protocol. Phase 1
// issues a short-lived write credential without committing any state; a
// client that never uploads leaves nothing behind. Phase 2 reconciles the
// completed upload against the actually stored bytes, charges quota and
// creates the file record, and is safe to retry.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/google/uuid"

	"github.com/skystash/skystash/internal/activity"
	"github.com/skystash/skystash/internal/blob"
	"github.com/skystash/skystash/internal/quota"
	"github.com/skystash/skystash/internal/storage"
)

type Config struct {
	// CredentialTTL bounds the write credential. Minutes, not hours: an
	// abandoned credential should expire before it becomes a liability.
	CredentialTTL time.Duration `env:"UPLOAD_CREDENTIAL_TTL" envDefault:"10m"`

	// MaxFileBytes caps a single file. Zero means the capacity ceiling.
	MaxFileBytes int64 `env:"UPLOAD_MAX_FILE_BYTES"`
}

// Store is the slice of the storage layer the coordinator needs.
type Store interface {
	CreateFileCommitUsage(ctx context.Context, f storage.File) (storage.File, error)
	FileByObjectKey(ctx context.Context, ownerID, objectKey string) (storage.File, error)
}

// Gateway is the slice of the object store gateway the coordinator needs.
type Gateway interface {
	IssueUploadCredential(ctx context.Context, userID, name, contentType string, ttl time.Duration) (blob.UploadCredential, error)
	Stat(ctx context.Context, objectKey string) (blob.ObjectInfo, error)
	Put(ctx context.Context, objectKey, contentType string, body io.Reader) error
}

// CredentialRequest is the client's phase-1 declaration. Nothing in it is
// trusted at completion time.
type CredentialRequest struct {
	Name        string
	SizeBytes   int64
	ContentType string
}

// Credential is the phase-1 result handed back to the client.
type Credential struct {
	WriteURL         string `json:"write_url"`
	ObjectKey        string `json:"object_key"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

type Coordinator struct {
	store    Store
	gateway  Gateway
	ledger   *quota.Ledger
	recorder *activity.Recorder
	cfg      Config
	log      *slog.Logger
}

func NewCoordinator(store Store, gateway Gateway, ledger *quota.Ledger, recorder *activity.Recorder, cfg Config, log *slog.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		gateway:  gateway,
		ledger:   ledger,
		recorder: recorder,
		cfg:      cfg,
		log:      log,
	}
}

func (c *Coordinator) maxFileBytes() int64 {
	if c.cfg.MaxFileBytes > 0 {
		return c.cfg.MaxFileBytes
	}
	return c.ledger.Capacity()
}

// RequestCredential validates the declared upload and issues a delegated
// write credential. Purely advisory: no quota commit, no record.
func (c *Coordinator) RequestCredential(ctx context.Context, userID string, req CredentialRequest) (Credential, error) {
	if err := blob.ValidateDisplayName(req.Name); err != nil {
		return Credential{}, err
	}
	if !extensionAllowed(req.Name) || !contentTypeAllowed(req.ContentType) {
		return Credential{}, fmt.Errorf("%w: %s (%s)", ErrTypeNotAllowed, req.Name, req.ContentType)
	}
	if req.SizeBytes <= 0 || req.SizeBytes > c.maxFileBytes() {
		return Credential{}, fmt.Errorf("%w: %d bytes", ErrInvalidSize, req.SizeBytes)
	}

	check, err := c.ledger.CheckCapacity(ctx, userID, req.SizeBytes)
	if err != nil {
		return Credential{}, err
	}
	if !check.Allowed {
		return Credential{}, &QuotaExceededError{RemainingBytes: check.RemainingBytes}
	}

	cred, err := c.gateway.IssueUploadCredential(ctx, userID, req.Name, req.ContentType, c.cfg.CredentialTTL)
	if err != nil {
		return Credential{}, err
	}

	return Credential{
		WriteURL:         cred.WriteURL,
		ObjectKey:        cred.ObjectKey,
		ExpiresInSeconds: int64(cred.ExpiresIn.Seconds()),
	}, nil
}

// Complete reconciles a finished upload. Size and content type come from
// the store, never from the client. Completing the same object key twice
// returns the existing record without touching quota again; the unique
// index in the storage layer arbitrates concurrent calls.
func (c *Coordinator) Complete(ctx context.Context, userID, objectKey, displayName string) (storage.File, error) {
	if err := blob.ValidateDisplayName(displayName); err != nil {
		return storage.File{}, err
	}

	// A key outside the caller's namespace reads as missing, the same way
	// foreign file records do.
	if !blob.Owns(userID, objectKey) {
		return storage.File{}, fmt.Errorf("%w: %s", blob.ErrObjectNotFound, "object key not in caller namespace")
	}

	if existing, err := c.store.FileByObjectKey(ctx, userID, objectKey); err == nil {
		return existing, nil
	} else if !errors.Is(err, storage.ErrFileNotFound) {
		return storage.File{}, err
	}

	info, err := c.gateway.Stat(ctx, objectKey)
	if err != nil {
		return storage.File{}, err
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	created, err := c.store.CreateFileCommitUsage(ctx, storage.File{
		ID:          uuid.New(),
		OwnerID:     userID,
		ObjectKey:   objectKey,
		DisplayName: displayName,
		SizeBytes:   info.SizeBytes,
		ContentType: contentType,
	})
	if errors.Is(err, storage.ErrObjectKeyExists) {
		// Lost the race against a concurrent completion of the same key.
		return c.store.FileByObjectKey(ctx, userID, objectKey)
	}
	if err != nil {
		return storage.File{}, err
	}

	c.recorder.Record(ctx, userID, created.ID, storage.ActionUpload, created.DisplayName, nil)
	return created, nil
}

// DirectUpload is the deprecated single-phase path: the file is proxied
// through the application in one request. Kept as a compatibility
// fallback for environments without delegated-credential support.
func (c *Coordinator) DirectUpload(ctx context.Context, userID string, fh *multipart.FileHeader) (storage.File, error) {
	if fh == nil {
		return storage.File{}, fmt.Errorf("%w: missing file", ErrInvalidSize)
	}

	name := blob.SanitizeName(fh.Filename)
	if err := blob.ValidateDisplayName(name); err != nil {
		return storage.File{}, err
	}

	contentType, err := detectContentType(fh)
	if err != nil {
		contentType = "application/octet-stream"
	}
	if !extensionAllowed(name) || !contentTypeAllowed(contentType) {
		return storage.File{}, fmt.Errorf("%w: %s (%s)", ErrTypeNotAllowed, name, contentType)
	}
	if fh.Size <= 0 || fh.Size > c.maxFileBytes() {
		return storage.File{}, fmt.Errorf("%w: %d bytes", ErrInvalidSize, fh.Size)
	}

	check, err := c.ledger.CheckCapacity(ctx, userID, fh.Size)
	if err != nil {
		return storage.File{}, err
	}
	if !check.Allowed {
		return storage.File{}, &QuotaExceededError{RemainingBytes: check.RemainingBytes}
	}

	src, err := fh.Open()
	if err != nil {
		return storage.File{}, fmt.Errorf("open multipart file: %w", err)
	}
	defer func() { _ = src.Close() }()

	objectKey := blob.NewObjectKey(userID, name, time.Now())
	if err := c.gateway.Put(ctx, objectKey, contentType, src); err != nil {
		return storage.File{}, err
	}

	created, err := c.store.CreateFileCommitUsage(ctx, storage.File{
		ID:          uuid.New(),
		OwnerID:     userID,
		ObjectKey:   objectKey,
		DisplayName: name,
		SizeBytes:   fh.Size,
		ContentType: contentType,
	})
	if err != nil {
		return storage.File{}, err
	}

	c.recorder.Record(ctx, userID, created.ID, storage.ActionUpload, created.DisplayName, nil)
	return created, nil
}
