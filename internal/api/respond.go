package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/skystash/skystash/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fileResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	SizeBytes   int64      `json:"size_bytes"`
	ContentType string     `json:"content_type"`
	Starred     bool       `json:"starred"`
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	TrashedAt   *time.Time `json:"trashed_at,omitempty"`
}

func toFileResponse(f storage.File) fileResponse {
	state := "active"
	if f.Trashed() {
		state = "trashed"
	}
	return fileResponse{
		ID:          f.ID.String(),
		Name:        f.DisplayName,
		SizeBytes:   f.SizeBytes,
		ContentType: f.ContentType,
		Starred:     f.Starred,
		State:       state,
		CreatedAt:   f.CreatedAt,
		TrashedAt:   f.TrashedAt,
	}
}

func toFileResponses(files []storage.File) []fileResponse {
	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toFileResponse(f))
	}
	return out
}

type recentFileResponse struct {
	fileResponse
	LastActivityAt time.Time `json:"last_activity_at"`
}

type activityResponse struct {
	ID        string         `json:"id"`
	FileID    string         `json:"file_id"`
	Action    string         `json:"action"`
	FileName  string         `json:"file_name"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
