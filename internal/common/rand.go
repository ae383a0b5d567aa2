package common

import "crypto/rand"

// RandBytes returns size bytes from the system CSPRNG.
func RandBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
