package domain

import (
	"crypto/rand"
	"fmt"
)

// tokenAlphabet omits characters that are easy to misread (0/O, 1/I/L).
const tokenAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// randomToken returns n characters drawn uniformly from tokenAlphabet using
// crypto/rand.
func randomToken(n int) (string, error) {
	const limit = 256 - 256%len(tokenAlphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			// Rejection sampling keeps the distribution uniform.
			if int(b) >= limit {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
