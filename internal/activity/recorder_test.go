package activity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skystash/skystash/internal/storage"
)

type captureStore struct {
	mu     sync.Mutex
	events []storage.ActivityEvent
	err    error
}

func (c *captureStore) InsertActivityBatch(_ context.Context, events []storage.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, events...)
	return nil
}

func (c *captureStore) recorded() []storage.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]storage.ActivityEvent, len(c.events))
	copy(out, c.events)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRecorder_WritesBatches(t *testing.T) {
	t.Parallel()

	store := &captureStore{}
	recorder, closeRecorder := NewRecorder(store, discardLogger(), Options{
		BatchSize:    2,
		BatchTimeout: 10 * time.Millisecond,
	})

	fileID := uuid.New()
	recorder.Record(context.Background(), "user-1", fileID, storage.ActionUpload, "a.txt", nil)
	recorder.Record(context.Background(), "user-1", fileID, storage.ActionView, "a.txt", nil)
	recorder.Record(context.Background(), "user-1", fileID, storage.ActionRename, "b.txt",
		RenameMetadata("a.txt", "b.txt"))

	require.NoError(t, closeRecorder(context.Background()))

	events := store.recorded()
	require.Len(t, events, 3)
	assert.Equal(t, storage.ActionUpload, events[0].Action)
	assert.Equal(t, "user-1", events[0].OwnerID)
	assert.Equal(t, fileID, events[0].FileID)
	assert.Equal(t, map[string]any{"old_name": "a.txt", "new_name": "b.txt"}, events[2].Metadata)
}

func TestRecorder_FlushesPartialBatchOnTimeout(t *testing.T) {
	t.Parallel()

	store := &captureStore{}
	recorder, closeRecorder := NewRecorder(store, discardLogger(), Options{
		BatchSize:    100,
		BatchTimeout: 5 * time.Millisecond,
	})
	defer closeRecorder(context.Background())

	recorder.Record(context.Background(), "user-1", uuid.New(), storage.ActionDownload, "a.txt", nil)

	assert.Eventually(t, func() bool {
		return len(store.recorded()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRecorder_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	// With a one-slot buffer the producer outruns the worker. Records must
	// drop rather than block, and insert failures stay contained.
	store := &captureStore{err: errors.New("storage down")}
	recorder, closeRecorder := NewRecorder(store, discardLogger(), Options{
		BufferSize:   1,
		BatchSize:    100,
		BatchTimeout: time.Hour,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			recorder.Record(context.Background(), "user-1", uuid.New(), storage.ActionUpload, "a.txt", nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full buffer")
	}

	require.NoError(t, closeRecorder(context.Background()))
	assert.Empty(t, store.recorded())
}

func TestRecorder_DrainsOnClose(t *testing.T) {
	t.Parallel()

	store := &captureStore{}
	recorder, closeRecorder := NewRecorder(store, discardLogger(), Options{
		BatchSize:    1000,
		BatchTimeout: time.Hour,
	})

	for i := 0; i < 25; i++ {
		recorder.Record(context.Background(), "user-1", uuid.New(), storage.ActionUpload, "a.txt", nil)
	}

	require.NoError(t, closeRecorder(context.Background()))
	assert.Len(t, store.recorded(), 25)
}
