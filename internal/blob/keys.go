package blob

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	keyNamespace  = "u/"
	maxNameLength = 255
)

// NewObjectKey builds a collision-resistant key namespaced under the
// owner: u/<userID>/<unixnano>-<sanitized name>. The nanosecond prefix
// keeps keys time-ordered and unique per user even for repeated names.
func NewObjectKey(userID, name string, now time.Time) string {
	return fmt.Sprintf("%s%s/%d-%s", keyNamespace, userID, now.UnixNano(), SanitizeName(name))
}

// Owns reports whether the object key sits inside the user's namespace.
// Phase-2 completion relies on this check instead of a persisted upload
// intent, so the namespace prefix must bind every key to one owner.
func Owns(userID, objectKey string) bool {
	return userID != "" && strings.HasPrefix(objectKey, keyNamespace+userID+"/")
}

// SanitizeName strips path components and dangerous characters from a
// filename before it becomes part of an object key.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	name = b.String()

	if name == "" || name == "." || name == ".." || name == "/" {
		name = "unnamed"
	}
	return name
}

// ValidateDisplayName checks a human-visible file name: non-empty after
// trimming, length-bounded, and free of path separators and control
// characters. Display names never reach the object store as paths, but
// rejecting them early keeps every downstream consumer safe.
func ValidateDisplayName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if trimmed == "." || trimmed == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, trimmed)
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	if strings.ContainsAny(trimmed, "/\\\x00") {
		return fmt.Errorf("%w: name contains path characters", ErrInvalidName)
	}
	for _, r := range trimmed {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: name contains control characters", ErrInvalidName)
		}
	}
	return nil
}
