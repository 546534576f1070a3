// Package activity appends immutable audit events for lifecycle-relevant
// actions. Recording is fire-and-forget: a failed or dropped append never
// fails the operation that triggered it. Delivery is at most once, best
// effort.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skystash/skystash/internal/storage"
)

// Store provides bulk insertion of events.
type Store interface {
	InsertActivityBatch(ctx context.Context, events []storage.ActivityEvent) error
}

// Options tune the buffering and batching of the background writer.
type Options struct {
	BufferSize     int           // queued events before new ones are dropped
	BatchSize      int           // target events per insert
	BatchTimeout   time.Duration // max wait before flushing a partial batch
	StorageTimeout time.Duration // per-batch insert deadline
}

func (o *Options) applyDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = 5 * time.Second
	}
}

// Recorder buffers events and writes them in batches from a background
// goroutine.
type Recorder struct {
	store Store
	log   *slog.Logger
	opts  Options

	events chan storage.ActivityEvent
	done   chan struct{}
	closed chan struct{}
}

// NewRecorder starts the background writer and returns the recorder with
// its shutdown func. Close drains buffered events before returning.
func NewRecorder(store Store, log *slog.Logger, opts Options) (*Recorder, func(context.Context) error) {
	opts.applyDefaults()

	r := &Recorder{
		store:  store,
		log:    log,
		opts:   opts,
		events: make(chan storage.ActivityEvent, opts.BufferSize),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go r.worker()

	return r, r.close
}

// Record enqueues an event without blocking. When the buffer is full the
// event is dropped and logged; audit logging must never back-pressure the
// request path.
func (r *Recorder) Record(ctx context.Context, ownerID string, fileID uuid.UUID, action storage.Action, fileName string, metadata map[string]any) {
	event := storage.ActivityEvent{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		FileID:    fileID,
		Action:    action,
		FileName:  fileName,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}

	select {
	case r.events <- event:
	default:
		r.log.WarnContext(ctx, "activity event dropped, buffer full",
			"action", string(action), "file_id", fileID.String())
	}
}

// RenameMetadata builds the metadata map attached to rename events.
func RenameMetadata(oldName, newName string) map[string]any {
	return map[string]any{"old_name": oldName, "new_name": newName}
}

func (r *Recorder) worker() {
	defer close(r.closed)

	batch := make([]storage.ActivityEvent, 0, r.opts.BatchSize)
	ticker := time.NewTicker(r.opts.BatchTimeout)
	defer ticker.Stop()

	// Storage failures are logged and discarded; the events are gone.
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.StorageTimeout)
		if err := r.store.InsertActivityBatch(ctx, batch); err != nil {
			r.log.ErrorContext(ctx, "failed to write activity batch",
				"error", err, "events", len(batch))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case e := <-r.events:
			batch = append(batch, e)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.done:
			for {
				select {
				case e := <-r.events:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (r *Recorder) close(ctx context.Context) error {
	close(r.done)
	select {
	case <-r.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
