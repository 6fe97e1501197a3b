package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// ShortHash returns the first n bytes of the SHA-256 of s, hex encoded.
func ShortHash(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	if n > len(sum) {
		n = len(sum)
	}
	return fmt.Sprintf("%x", sum[:n])
}

// SynthesizeEmail builds a placeholder address for a staged user without one.
// Target platforms require a unique email per account, and the synthesis must
// be deterministic so reruns derive the same identity for the same row.
func SynthesizeEmail(sourceTag, name, nativeID string) string {
	return ShortHash(sourceTag+"|"+name+"|"+nativeID, 6) + "@imported.invalid"
}

// UsernameFromEmail derives a username from the local part of an email
// address, reduced to the character set discussion platforms accept.
func UsernameFromEmail(email string) string {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	return SlugifyUsername(local)
}

// SlugifyUsername strips a candidate username down to letters, digits,
// dashes, dots and underscores. Runs of illegal characters collapse to a
// single underscore; leading and trailing separators are trimmed. Returns ""
// when nothing legal remains, in which case the caller falls back to a
// hash-based name.
func SlugifyUsername(name string) string {
	var b strings.Builder
	lastSep := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSep = false
		case r == '-' || r == '.' || r == '_':
			if !lastSep {
				b.WriteRune(r)
				lastSep = true
			}
		default:
			if !lastSep {
				b.WriteRune('_')
				lastSep = true
			}
		}
	}
	return strings.Trim(b.String(), "-._")
}

// FallbackUsername is the deterministic last resort when neither the source
// username nor the email local part yields any legal characters.
func FallbackUsername(sourceTag, nativeID string) string {
	return "user_" + ShortHash(sourceTag+"|"+nativeID, 4)
}
