// Package quota tracks bytes consumed per user against a fixed capacity
// ceiling. The counter lives in the database and every adjustment is a
// single atomic increment, so correctness holds across service instances.
package quota

import (
	"context"
	"fmt"
)

type Config struct {
	// CapacityBytes is the per-user ceiling. Defaults to 1 GiB.
	CapacityBytes int64 `env:"STORAGE_CAPACITY_BYTES" envDefault:"1073741824"`
}

// Store is the slice of the storage layer the ledger needs.
type Store interface {
	EnsureUser(ctx context.Context, userID string) error
	UserUsage(ctx context.Context, userID string) (int64, error)
	AddUsage(ctx context.Context, userID string, delta int64) error
}

// CapacityCheck is the outcome of an advisory pre-check. A denied check
// carries the remaining headroom as a hint for the caller.
type CapacityCheck struct {
	Allowed        bool
	RemainingBytes int64
}

// Usage is the quota summary exposed to clients.
type Usage struct {
	UsedBytes      int64 `json:"used_bytes"`
	CapacityBytes  int64 `json:"capacity_bytes"`
	RemainingBytes int64 `json:"remaining_bytes"`
}

type Ledger struct {
	store    Store
	capacity int64
}

func NewLedger(store Store, cfg Config) *Ledger {
	return &Ledger{store: store, capacity: cfg.CapacityBytes}
}

// Capacity returns the fixed per-user ceiling.
func (l *Ledger) Capacity() int64 {
	return l.capacity
}

// CheckCapacity is a read-only pre-check. It is advisory by design: two
// concurrent checks can both pass and later both commit, overshooting the
// ceiling by at most one file. The ledger row is provisioned lazily here
// since this is the first ledger touch for a new user.
func (l *Ledger) CheckCapacity(ctx context.Context, userID string, additional int64) (CapacityCheck, error) {
	if err := l.store.EnsureUser(ctx, userID); err != nil {
		return CapacityCheck{}, fmt.Errorf("check capacity: %w", err)
	}

	used, err := l.store.UserUsage(ctx, userID)
	if err != nil {
		return CapacityCheck{}, fmt.Errorf("check capacity: %w", err)
	}

	remaining := l.capacity - used
	if remaining < 0 {
		remaining = 0
	}
	return CapacityCheck{
		Allowed:        used+additional <= l.capacity,
		RemainingBytes: remaining,
	}, nil
}

// Commit atomically adjusts the user's counted bytes by a signed delta.
// It does not re-enforce the ceiling (accepted soft-limit design) but the
// store rejects a delta that would take usage negative.
func (l *Ledger) Commit(ctx context.Context, userID string, delta int64) error {
	return l.store.AddUsage(ctx, userID, delta)
}

// Usage returns the quota summary for the user, provisioning the ledger
// row if this is their first interaction.
func (l *Ledger) Usage(ctx context.Context, userID string) (Usage, error) {
	if err := l.store.EnsureUser(ctx, userID); err != nil {
		return Usage{}, fmt.Errorf("read usage: %w", err)
	}

	used, err := l.store.UserUsage(ctx, userID)
	if err != nil {
		return Usage{}, fmt.Errorf("read usage: %w", err)
	}

	remaining := l.capacity - used
	if remaining < 0 {
		remaining = 0
	}
	return Usage{UsedBytes: used, CapacityBytes: l.capacity, RemainingBytes: remaining}, nil
}
