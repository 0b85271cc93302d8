package utils

import (
	"crypto/rand"
	"math/big"
)

// Link codes are typed by hand, so look-alike characters are left out.
const charset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateCode returns a random code of length n drawn from charset.
func GenerateCode(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}
