package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// passwordAlphabet deliberately omits 0/O, 1/l/I and similar look-alikes, so a
// generated credential survives being read over the phone or retyped from a
// welcome email.
const passwordAlphabet = "abcdefghjkmnpqrstuvwxyzACDEFGHJKLMNPQRSTUVWXYZ23456789"

// GeneratePassword returns a random one-time password of the given length
// drawn from the unambiguous alphabet.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		length = 8
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("rand: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
