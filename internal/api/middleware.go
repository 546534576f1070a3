package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

type Config struct {
	// AntiForgerySecret keys the HMAC behind mutation tokens.
	AntiForgerySecret string `env:"ANTIFORGERY_SECRET,required"`

	// IdentityHeader carries the authenticated subject, set by the
	// upstream identity collaborator. The service trusts it completely.
	IdentityHeader string `env:"IDENTITY_HEADER" envDefault:"X-Auth-Subject"`
}

type ctxKey int

const subjectKey ctxKey = iota

// SubjectFromContext returns the authenticated user id for the request.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok && s != ""
}

// identity extracts the authenticated subject from the trusted header.
// Subjects containing path separators are rejected outright: the object
// key namespace depends on subjects being slash-free.
func (s *Server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := strings.TrimSpace(r.Header.Get(s.cfg.IdentityHeader))
		if subject == "" || strings.ContainsAny(subject, "/\\") {
			respondUnauthenticated(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, subject)))
	})
}

const antiForgeryHeader = "X-Antiforgery-Token"

// antiForgeryToken derives the per-session token. Session scope is the
// identity subject; session rotation happens upstream at the identity
// provider.
func (s *Server) antiForgeryToken(subject string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.AntiForgerySecret))
	mac.Write([]byte(subject))
	return hex.EncodeToString(mac.Sum(nil))
}

// antiForgery rejects state-mutating requests whose token header is
// absent or mismatched, before any business logic runs.
func (s *Server) antiForgery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := SubjectFromContext(r.Context())
		if !ok {
			respondUnauthenticated(w)
			return
		}

		token := r.Header.Get(antiForgeryHeader)
		expected := s.antiForgeryToken(subject)
		if token == "" || !hmac.Equal([]byte(token), []byte(expected)) {
			respondForbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
