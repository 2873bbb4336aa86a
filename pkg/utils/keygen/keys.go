package keygen

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const apiKeyCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// MinAPIKeyLength is the shortest key GenerateAPIKey hands out.
const MinAPIKeyLength = 16

var ErrKeyTooShort = errors.New("keygen: key length below minimum")

// GenerateAPIKey returns a random alphanumeric key of the given length,
// suitable for auth.api_key and delegate.api_key.
func GenerateAPIKey(length int) (string, error) {
	if length < MinAPIKeyLength {
		return "", ErrKeyTooShort
	}
	max := big.NewInt(int64(len(apiKeyCharset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = apiKeyCharset[n.Int64()]
	}
	return string(out), nil
}
