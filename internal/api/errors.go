package api

import (
	"errors"
	"net/http"

	"github.com/skystash/skystash/internal/blob"
	"github.com/skystash/skystash/internal/query"
	"github.com/skystash/skystash/internal/storage"
	"github.com/skystash/skystash/internal/upload"
)

// Kind is the stable machine-checkable error discriminator carried in
// every error response.
type Kind string

const (
	KindUnauthenticated     Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindInvalidInput        Kind = "invalid_input"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindConflict            Kind = "conflict"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal"
)

type errorBody struct {
	Kind           Kind   `json:"kind"`
	Message        string `json:"message"`
	RemainingBytes *int64 `json:"remaining_bytes,omitempty"`
}

// respondError maps domain sentinels onto the HTTP taxonomy. Unknown
// errors surface as a generic internal failure with full detail logged
// server-side only.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var quotaErr *upload.QuotaExceededError
	if errors.As(err, &quotaErr) {
		writeJSON(w, http.StatusInsufficientStorage, errorBody{
			Kind:           KindQuotaExceeded,
			Message:        "storage quota exceeded",
			RemainingBytes: &quotaErr.RemainingBytes,
		})
		return
	}

	switch {
	case errors.Is(err, blob.ErrInvalidName),
		errors.Is(err, upload.ErrInvalidSize),
		errors.Is(err, upload.ErrTypeNotAllowed),
		errors.Is(err, query.ErrInvalidPage),
		errors.Is(err, query.ErrInvalidState),
		errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: KindInvalidInput, Message: err.Error()})

	case errors.Is(err, storage.ErrFileNotFound),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, blob.ErrObjectNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Kind: KindNotFound, Message: "not found"})

	case errors.Is(err, storage.ErrInvalidFileState),
		errors.Is(err, storage.ErrObjectKeyExists):
		writeJSON(w, http.StatusConflict, errorBody{Kind: KindConflict, Message: err.Error()})

	case errors.Is(err, blob.ErrStoreUnavailable):
		s.log.ErrorContext(r.Context(), "object store failure", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusBadGateway, errorBody{Kind: KindUpstreamUnavailable, Message: "object store unavailable"})

	default:
		s.log.ErrorContext(r.Context(), "unhandled error", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorBody{Kind: KindInternal, Message: "internal error"})
	}
}

// errBadRequest tags request decoding problems for the classifier.
var errBadRequest = errors.New("bad request")

func respondUnauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorBody{Kind: KindUnauthenticated, Message: "authentication required"})
}

func respondForbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, errorBody{Kind: KindForbidden, Message: "anti-forgery token missing or invalid"})
}

func respondNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorBody{Kind: KindNotFound, Message: "not found"})
}
