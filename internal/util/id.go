package util

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewTokenID returns the opaque public identifier for a story token.
func NewTokenID() string {
	return strings.ToLower(uuid.NewString())
}

// NewPublicID returns the 12-character public identifier used for projects,
// teams and users.
func NewPublicID() string {
	out := make([]byte, 12)
	max := big.NewInt(int64(len(idCharset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			n = big.NewInt(int64(i % len(idCharset)))
		}
		out[i] = idCharset[n.Int64()]
	}
	return string(out)
}

// RandomSuffix returns a short random tail used to keep slugs unique.
func RandomSuffix(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(idCharset)))
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			v = big.NewInt(int64(i % len(idCharset)))
		}
		out[i] = idCharset[v.Int64()]
	}
	return strings.ToLower(string(out))
}

// Slugify lowercases the input and collapses every non-alphanumeric run
// into a single dash.
func Slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
