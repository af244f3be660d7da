package otp

import (
	"crypto/sha256"
	"errors"
	"io"
	"strings"
)

// Alphabet is the symbol set codes are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// largest multiple of len(Alphabet) that fits in a byte
const rejectAbove = 256 - 256%len(Alphabet)

// GenerateCode draws length symbols uniformly from Alphabet using r.
func GenerateCode(r io.Reader, length int) (string, error) {
	if length <= 0 {
		return "", errors.New("invalid otp length")
	}
	if r == nil {
		return "", errors.New("nil random source")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		chunk := buf[:length-len(out)]
		if _, err := io.ReadFull(r, chunk); err != nil {
			return "", err
		}
		for _, b := range chunk {
			if int(b) >= rejectAbove {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
		}
	}
	return string(out), nil
}

// HashCode returns the SHA-256 digest of a normalized code.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(NormalizeCode(code)))
}

// NormalizeCode trims whitespace and upper-cases a submitted code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
