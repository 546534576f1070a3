package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skystash/skystash/internal/query"
)

// fileID parses the path id. A malformed id reads as a missing file, the
// same as an id that was never issued.
func fileID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func pageFromQuery(r *http.Request) (query.Page, error) {
	q := r.URL.Query()

	number, size := 0, 0
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return query.Page{}, fmt.Errorf("%w: page=%q", query.ErrInvalidPage, raw)
		}
		number = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return query.Page{}, fmt.Errorf("%w: limit=%q", query.ErrInvalidPage, raw)
		}
		size = n
	}

	return query.NormalizePage(number, size)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	page, err := pageFromQuery(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	files, err := s.queries.List(r.Context(), subject, r.URL.Query().Get("state"), page)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": toFileResponses(files)})
}

func (s *Server) handleSearchFiles(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("%w: limit=%q", query.ErrInvalidPage, raw))
			return
		}
		limit = n
	}

	files, err := s.queries.Search(r.Context(), subject, r.URL.Query().Get("q"), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": toFileResponses(files)})
}

func (s *Server) handleRecentFiles(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	page, err := pageFromQuery(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	recent, err := s.queries.Recent(r.Context(), subject, page)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]recentFileResponse, 0, len(recent))
	for _, rf := range recent {
		out = append(out, recentFileResponse{
			fileResponse:   toFileResponse(rf.File),
			LastActivityAt: rf.LastActivityAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out})
}

func (s *Server) handleActivityFeed(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	page, err := pageFromQuery(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	events, err := s.queries.Activity(r.Context(), subject, page)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]activityResponse, 0, len(events))
	for _, e := range events {
		out = append(out, activityResponse{
			ID:        e.ID.String(),
			FileID:    e.FileID.String(),
			Action:    string(e.Action),
			FileName:  e.FileName,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	id, ok := fileID(r)
	if !ok {
		respondNotFound(w)
		return
	}

	inline := r.URL.Query().Get("disposition") == "inline"
	url, err := s.files.Download(r.Context(), subject, id, inline)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// updateFileRequest carries exactly one mutation: a rename or a starred
// toggle. Pointers distinguish "absent" from zero values; starring
// requires an explicit boolean.
type updateFileRequest struct {
	Name    *string `json:"name"`
	Starred *bool   `json:"starred"`
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	id, ok := fileID(r)
	if !ok {
		respondNotFound(w)
		return
	}

	var req updateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: malformed json body", errBadRequest))
		return
	}
	if (req.Name == nil) == (req.Starred == nil) {
		s.respondError(w, r, fmt.Errorf("%w: exactly one of name or starred is required", errBadRequest))
		return
	}

	if req.Name != nil {
		f, err := s.files.Rename(r.Context(), subject, id, *req.Name)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toFileResponse(f))
		return
	}

	f, err := s.files.SetStarred(r.Context(), subject, id, *req.Starred)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFileResponse(f))
}

func (s *Server) handleTrashFile(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	id, ok := fileID(r)
	if !ok {
		respondNotFound(w)
		return
	}

	f, err := s.files.Trash(r.Context(), subject, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFileResponse(f))
}

func (s *Server) handleRestoreFile(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	id, ok := fileID(r)
	if !ok {
		respondNotFound(w)
		return
	}

	f, err := s.files.Restore(r.Context(), subject, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFileResponse(f))
}

func (s *Server) handlePurgeFile(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	id, ok := fileID(r)
	if !ok {
		respondNotFound(w)
		return
	}

	if err := s.files.Purge(r.Context(), subject, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
