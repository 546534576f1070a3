package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skystash/skystash/internal/activity"
	"github.com/skystash/skystash/internal/blob"
	"github.com/skystash/skystash/internal/quota"
	"github.com/skystash/skystash/internal/storage"
)

type fakeStore struct {
	mu    sync.Mutex
	usage map[string]int64
	files map[string]storage.File // keyed by owner + "\x00" + object key
}

func newStoreFake() *fakeStore {
	return &fakeStore{usage: make(map[string]int64), files: make(map[string]storage.File)}
}

func key(ownerID, objectKey string) string { return ownerID + "\x00" + objectKey }

func (f *fakeStore) EnsureUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.usage[userID]; !ok {
		f.usage[userID] = 0
	}
	return nil
}

func (f *fakeStore) UserUsage(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usage[userID], nil
}

func (f *fakeStore) AddUsage(_ context.Context, userID string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usage[userID]+delta < 0 {
		return storage.ErrNegativeUsage
	}
	f.usage[userID] += delta
	return nil
}

func (f *fakeStore) CreateFileCommitUsage(_ context.Context, file storage.File) (storage.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(file.OwnerID, file.ObjectKey)
	if _, ok := f.files[k]; ok {
		return storage.File{}, storage.ErrObjectKeyExists
	}
	file.CreatedAt = time.Now()
	f.files[k] = file
	f.usage[file.OwnerID] += file.SizeBytes
	return file, nil
}

func (f *fakeStore) FileByObjectKey(_ context.Context, ownerID, objectKey string) (storage.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[key(ownerID, objectKey)]
	if !ok {
		return storage.File{}, storage.ErrFileNotFound
	}
	return file, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	objects map[string]blob.ObjectInfo
	putKeys []string
	statErr error
}

func newGatewayFake() *fakeGateway {
	return &fakeGateway{objects: make(map[string]blob.ObjectInfo)}
}

func (g *fakeGateway) IssueUploadCredential(_ context.Context, userID, name, _ string, ttl time.Duration) (blob.UploadCredential, error) {
	objectKey := blob.NewObjectKey(userID, name, time.Now())
	return blob.UploadCredential{
		WriteURL:  "https://store.example/" + objectKey + "?sig=abc",
		ObjectKey: objectKey,
		ExpiresIn: ttl,
	}, nil
}

func (g *fakeGateway) Stat(_ context.Context, objectKey string) (blob.ObjectInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statErr != nil {
		return blob.ObjectInfo{}, g.statErr
	}
	info, ok := g.objects[objectKey]
	if !ok {
		return blob.ObjectInfo{}, fmt.Errorf("%w: head object", blob.ErrObjectNotFound)
	}
	return info, nil
}

func (g *fakeGateway) Put(_ context.Context, objectKey, contentType string, body io.Reader) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return err
	}
	g.objects[objectKey] = blob.ObjectInfo{SizeBytes: n, ContentType: contentType}
	g.putKeys = append(g.putKeys, objectKey)
	return nil
}

func (g *fakeGateway) store(objectKey string, info blob.ObjectInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[objectKey] = info
}

func newTestCoordinator(t *testing.T, store *fakeStore, gateway *fakeGateway, cfg Config) *Coordinator {
	t.Helper()

	if cfg.CredentialTTL == 0 {
		cfg.CredentialTTL = 10 * time.Minute
	}
	log := slog.New(slog.DiscardHandler)
	ledger := quota.NewLedger(store, quota.Config{CapacityBytes: 1000})
	recorder, closeRecorder := activity.NewRecorder(noopActivityStore{}, log, activity.Options{})
	t.Cleanup(func() { _ = closeRecorder(context.Background()) })

	return NewCoordinator(store, gateway, ledger, recorder, cfg, log)
}

type noopActivityStore struct{}

func (noopActivityStore) InsertActivityBatch(context.Context, []storage.ActivityEvent) error {
	return nil
}

func TestCoordinator_RequestCredential(t *testing.T) {
	t.Parallel()

	t.Run("issues a scoped credential without committing state", func(t *testing.T) {
		t.Parallel()

		store := newStoreFake()
		c := newTestCoordinator(t, store, newGatewayFake(), Config{})

		cred, err := c.RequestCredential(context.Background(), "user-1", CredentialRequest{
			Name: "photo.jpg", SizeBytes: 500, ContentType: "image/jpeg",
		})
		require.NoError(t, err)

		assert.True(t, blob.Owns("user-1", cred.ObjectKey))
		assert.Contains(t, cred.WriteURL, cred.ObjectKey)
		assert.Equal(t, int64(600), cred.ExpiresInSeconds)

		usage, err := store.UserUsage(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Zero(t, usage, "phase 1 must not charge quota")
		assert.Empty(t, store.files, "phase 1 must not create records")
	})

	t.Run("rejects declared sizes over capacity", func(t *testing.T) {
		t.Parallel()

		c := newTestCoordinator(t, newStoreFake(), newGatewayFake(), Config{})

		_, err := c.RequestCredential(context.Background(), "user-1", CredentialRequest{
			Name: "big.zip", SizeBytes: 1001, ContentType: "application/zip",
		})
		assert.ErrorIs(t, err, ErrInvalidSize)
	})

	t.Run("denies when remaining quota is too small", func(t *testing.T) {
		t.Parallel()

		store := newStoreFake()
		store.usage["user-1"] = 900
		c := newTestCoordinator(t, store, newGatewayFake(), Config{})

		_, err := c.RequestCredential(context.Background(), "user-1", CredentialRequest{
			Name: "photo.jpg", SizeBytes: 101, ContentType: "image/jpeg",
		})
		require.ErrorIs(t, err, ErrQuotaExceeded)

		var qerr *QuotaExceededError
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, int64(100), qerr.RemainingBytes)
	})

	t.Run("validation table", func(t *testing.T) {
		t.Parallel()

		c := newTestCoordinator(t, newStoreFake(), newGatewayFake(), Config{})

		tests := []struct {
			name    string
			req     CredentialRequest
			wantErr error
		}{
			{
				name:    "empty name",
				req:     CredentialRequest{Name: "", SizeBytes: 10, ContentType: "image/jpeg"},
				wantErr: blob.ErrInvalidName,
			},
			{
				name:    "path in name",
				req:     CredentialRequest{Name: "../evil.jpg", SizeBytes: 10, ContentType: "image/jpeg"},
				wantErr: blob.ErrInvalidName,
			},
			{
				name:    "disallowed extension",
				req:     CredentialRequest{Name: "tool.exe", SizeBytes: 10, ContentType: "application/octet-stream"},
				wantErr: ErrTypeNotAllowed,
			},
			{
				name:    "disallowed content type",
				req:     CredentialRequest{Name: "page.html", SizeBytes: 10, ContentType: "text/html"},
				wantErr: ErrTypeNotAllowed,
			},
			{
				name:    "zero size",
				req:     CredentialRequest{Name: "photo.jpg", SizeBytes: 0, ContentType: "image/jpeg"},
				wantErr: ErrInvalidSize,
			},
			{
				name:    "negative size",
				req:     CredentialRequest{Name: "photo.jpg", SizeBytes: -1, ContentType: "image/jpeg"},
				wantErr: ErrInvalidSize,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := c.RequestCredential(context.Background(), "user-1", tt.req)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}
	})

	t.Run("content type parameters are tolerated", func(t *testing.T) {
		t.Parallel()

		c := newTestCoordinator(t, newStoreFake(), newGatewayFake(), Config{})

		_, err := c.RequestCredential(context.Background(), "user-1", CredentialRequest{
			Name: "notes.txt", SizeBytes: 10, ContentType: "text/plain; charset=utf-8",
		})
		assert.NoError(t, err)
	})
}

func TestCoordinator_Complete(t *testing.T) {
	t.Parallel()

	t.Run("creates the record from stored properties", func(t *testing.T) {
		t.Parallel()

		store := newStoreFake()
		gateway := newGatewayFake()
		c := newTestCoordinator(t, store, gateway, Config{})

		objectKey := blob.NewObjectKey("user-1", "photo.jpg", time.Now())
		// The client declared 500 bytes in phase 1 but actually stored 742.
		gateway.store(objectKey, blob.ObjectInfo{SizeBytes: 742, ContentType: "image/jpeg"})

		f, err := c.Complete(context.Background(), "user-1", objectKey, "photo.jpg")
		require.NoError(t, err)

		assert.Equal(t, int64(742), f.SizeBytes, "stored size wins over the declaration")
		assert.Equal(t, "image/jpeg", f.ContentType)
		assert.Equal(t, "photo.jpg", f.DisplayName)
		assert.NotEqual(t, uuid.Nil, f.ID)

		usage, err := store.UserUsage(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(742), usage)
	})

	t.Run("repeat completion returns the existing record once", func(t *testing.T) {
		t.Parallel()

		store := newStoreFake()
		gateway := newGatewayFake()
		c := newTestCoordinator(t, store, gateway, Config{})

		objectKey := blob.NewObjectKey("user-1", "photo.jpg", time.Now())
		gateway.store(objectKey, blob.ObjectInfo{SizeBytes: 100, ContentType: "image/jpeg"})

		first, err := c.Complete(context.Background(), "user-1", objectKey, "photo.jpg")
		require.NoError(t, err)

		second, err := c.Complete(context.Background(), "user-1", objectKey, "renamed.jpg")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "photo.jpg", second.DisplayName, "retry must not mutate the record")

		usage, err := store.UserUsage(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(100), usage, "quota charged exactly once")
	})

	t.Run("key outside caller namespace reads as missing", func(t *testing.T) {
		t.Parallel()

		store := newStoreFake()
		gateway := newGatewayFake()
		c := newTestCoordinator(t, store, gateway, Config{})

		objectKey := blob.NewObjectKey("user-1", "photo.jpg", time.Now())
		gateway.store(objectKey, blob.ObjectInfo{SizeBytes: 100, ContentType: "image/jpeg"})

		_, err := c.Complete(context.Background(), "user-2", objectKey, "photo.jpg")
		assert.ErrorIs(t, err, blob.ErrObjectNotFound)
		assert.Empty(t, store.files)
	})

	t.Run("completion without stored bytes fails", func(t *testing.T) {
		t.Parallel()

		store := newStoreFake()
		c := newTestCoordinator(t, store, newGatewayFake(), Config{})

		objectKey := blob.NewObjectKey("user-1", "photo.jpg", time.Now())
		_, err := c.Complete(context.Background(), "user-1", objectKey, "photo.jpg")
		assert.ErrorIs(t, err, blob.ErrObjectNotFound)
		assert.Empty(t, store.files)
	})

	t.Run("concurrent completions of one key settle on one record", func(t *testing.T) {
		t.Parallel()

		store := newStoreFake()
		gateway := newGatewayFake()
		c := newTestCoordinator(t, store, gateway, Config{})

		objectKey := blob.NewObjectKey("user-1", "photo.jpg", time.Now())
		gateway.store(objectKey, blob.ObjectInfo{SizeBytes: 100, ContentType: "image/jpeg"})

		const workers = 8
		results := make([]storage.File, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				f, err := c.Complete(context.Background(), "user-1", objectKey, "photo.jpg")
				assert.NoError(t, err)
				results[i] = f
			}(i)
		}
		wg.Wait()

		for i := 1; i < workers; i++ {
			assert.Equal(t, results[0].ID, results[i].ID)
		}

		usage, err := store.UserUsage(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(100), usage)
	})

	t.Run("empty stored content type falls back to octet-stream", func(t *testing.T) {
		t.Parallel()

		store := newStoreFake()
		gateway := newGatewayFake()
		c := newTestCoordinator(t, store, gateway, Config{})

		objectKey := blob.NewObjectKey("user-1", "photo.jpg", time.Now())
		gateway.store(objectKey, blob.ObjectInfo{SizeBytes: 100})

		f, err := c.Complete(context.Background(), "user-1", objectKey, "photo.jpg")
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", f.ContentType)
	})
}

func TestExtensionAllowed(t *testing.T) {
	t.Parallel()

	allowed := []string{"a.jpg", "a.JPG", "b.png", "c.pdf", "d.txt", "e.docx", "f.zip", "g.mp4", "h.mp3"}
	for _, name := range allowed {
		assert.True(t, extensionAllowed(name), name)
	}

	denied := []string{"a.exe", "b.sh", "c.html", "noext", "d.dll"}
	for _, name := range denied {
		assert.False(t, extensionAllowed(name), name)
	}
}

func TestContentTypeAllowed(t *testing.T) {
	t.Parallel()

	assert.True(t, contentTypeAllowed("image/jpeg"))
	assert.True(t, contentTypeAllowed("text/plain; charset=utf-8"))
	assert.False(t, contentTypeAllowed("text/html"))
	assert.False(t, contentTypeAllowed(""))
}
