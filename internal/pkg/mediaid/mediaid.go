// Package mediaid generates collision resistant identifiers for stored media
// files and in-flight transfers.
package mediaid

import (
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
)

const maxNameLength = 80

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newULID(t time.Time) ulid.ULID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy)
}

// Suffix returns a lowercase ULID used as the random part of generated names.
func Suffix() string {
	return strings.ToLower(newULID(time.Now()).String())
}

// TransferHandle returns an id for an in-flight upload.
func TransferHandle() string {
	return "upl_" + Suffix()
}

// FileName builds "<unixMillis>-<random>-<sanitized original>".
func FileName(now time.Time, original string) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + Suffix() + "-" + Sanitize(original)
}

// Sanitize reduces a client supplied filename to a safe basename: ASCII
// letters, digits, dot, dash and underscore, with the extension preserved.
func Sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(name))
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	var b strings.Builder
	lastDash := false
	for _, r := range stem {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
			lastDash = false
		case r == '_' || r == '.':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	clean := strings.Trim(b.String(), "-.")
	if clean == "" {
		clean = "file"
	}
	if len(clean) > maxNameLength {
		clean = clean[:maxNameLength]
	}

	ext = sanitizeExt(ext)
	return clean + ext
}

func sanitizeExt(ext string) string {
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if r >= unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return ""
		}
	}
	return ext
}
