// Package query is the read side: paginated listings, filename search and
// the derived recency view. It never mutates file records or activity
// events.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/skystash/skystash/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	minQueryLength  = 2
	maxSearchLimit  = 50
)

var (
	// ErrInvalidPage indicates malformed pagination parameters.
	ErrInvalidPage = errors.New("invalid pagination parameters")

	// ErrInvalidState indicates an unknown listing state.
	ErrInvalidState = errors.New("invalid listing state")
)

// Store is the slice of the storage layer the query service reads from.
type Store interface {
	ListFiles(ctx context.Context, ownerID string, state storage.ListState, limit, offset int) ([]storage.File, error)
	SearchFiles(ctx context.Context, ownerID, pattern string, limit int) ([]storage.File, error)
	RecentFiles(ctx context.Context, ownerID string, limit, offset int) ([]storage.RecentFile, error)
	ListActivity(ctx context.Context, ownerID string, limit, offset int) ([]storage.ActivityEvent, error)
}

// Page is a normalized pagination window.
type Page struct {
	Number int
	Size   int
}

// NormalizePage validates raw pagination input. Zero values select the
// defaults; negatives and oversized pages are rejected.
func NormalizePage(number, size int) (Page, error) {
	if number == 0 {
		number = 1
	}
	if size == 0 {
		size = defaultPageSize
	}
	if number < 1 || size < 1 || size > maxPageSize {
		return Page{}, fmt.Errorf("%w: page=%d limit=%d", ErrInvalidPage, number, size)
	}
	return Page{Number: number, Size: size}, nil
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns one page of the user's files for the given state.
func (s *Service) List(ctx context.Context, userID, state string, p Page) ([]storage.File, error) {
	var ls storage.ListState
	switch state {
	case "", string(storage.ListActive):
		ls = storage.ListActive
	case string(storage.ListTrashed):
		ls = storage.ListTrashed
	case string(storage.ListStarred):
		ls = storage.ListStarred
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, state)
	}

	return s.store.ListFiles(ctx, userID, ls, p.Size, p.offset())
}

// Search matches active files by case-insensitive substring. Queries
// shorter than two characters return empty without touching the store,
// and pattern metacharacters are escaped so they match literally.
func (s *Service) Search(ctx context.Context, userID, queryText string, limit int) ([]storage.File, error) {
	queryText = strings.TrimSpace(queryText)
	if len([]rune(queryText)) < minQueryLength {
		return []storage.File{}, nil
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	return s.store.SearchFiles(ctx, userID, escapeLikePattern(queryText), limit)
}

// Recent returns live files ordered by their most recent upload, view or
// rename activity. Files purged or trashed after the event drop out.
func (s *Service) Recent(ctx context.Context, userID string, p Page) ([]storage.RecentFile, error) {
	return s.store.RecentFiles(ctx, userID, p.Size, p.offset())
}

// Activity returns one page of the user's raw activity feed.
func (s *Service) Activity(ctx context.Context, userID string, p Page) ([]storage.ActivityEvent, error) {
	return s.store.ListActivity(ctx, userID, p.Size, p.offset())
}

// escapeLikePattern neutralizes LIKE metacharacters so user input cannot
// act as a pattern. The storage layer pairs it with ESCAPE '\'.
func escapeLikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
