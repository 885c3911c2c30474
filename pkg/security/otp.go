package security

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
)

// GenerateNumericCode returns a uniformly distributed string of n decimal
// digits read from r. Leading zeros are kept.
func GenerateNumericCode(r io.Reader, n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid code length %d", n)
	}
	if r == nil {
		r = rand.Reader
	}

	buf := make([]byte, n)
	out := make([]byte, 0, n)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			// 250 is the largest multiple of 10 below 256; rejecting above it
			// keeps every digit equally likely.
			if b >= 250 {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// EqualCodes compares two codes in constant time.
func EqualCodes(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
