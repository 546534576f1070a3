package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/skystash/skystash/internal/upload"
)

// directUploadMemoryLimit bounds multipart parsing memory; larger bodies
// spill to disk. The deprecated direct path is meant for small files.
const directUploadMemoryLimit = 32 << 20

type credentialRequest struct {
	Name        string `json:"name"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
}

func (s *Server) handleUploadCredential(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: malformed json body", errBadRequest))
		return
	}

	cred, err := s.uploads.RequestCredential(r.Context(), subject, upload.CredentialRequest{
		Name:        req.Name,
		SizeBytes:   req.SizeBytes,
		ContentType: req.ContentType,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

type completeRequest struct {
	ObjectKey string `json:"object_key"`
	Name      string `json:"name"`
}

func (s *Server) handleUploadComplete(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: malformed json body", errBadRequest))
		return
	}
	if req.ObjectKey == "" {
		s.respondError(w, r, fmt.Errorf("%w: object_key is required", errBadRequest))
		return
	}

	f, err := s.uploads.Complete(r.Context(), subject, req.ObjectKey, req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFileResponse(f))
}

func (s *Server) handleDirectUpload(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	if err := r.ParseMultipartForm(directUploadMemoryLimit); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: malformed multipart body", errBadRequest))
		return
	}

	fhs := r.MultipartForm.File["file"]
	if len(fhs) != 1 {
		s.respondError(w, r, fmt.Errorf("%w: exactly one file field is required", errBadRequest))
		return
	}

	f, err := s.uploads.DirectUpload(r.Context(), subject, fhs[0])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFileResponse(f))
}
