package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// SecretAlphabet is the character set used by GenerateRandomSecret.
const SecretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"0123456789" +
	"!@#$%^&*()_-+=<>?/{}~|"

// DefaultSecretLength is the length of generated secrets.
const DefaultSecretLength = 8

// GenerateRandomSecret returns a random string of the given length drawn
// uniformly from SecretAlphabet. A length of zero or less selects
// DefaultSecretLength.
func GenerateRandomSecret(length int) (string, error) {
	if length <= 0 {
		length = DefaultSecretLength
	}

	max := big.NewInt(int64(len(SecretAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate secret: %w", err)
		}
		out[i] = SecretAlphabet[n.Int64()]
	}
	return string(out), nil
}
