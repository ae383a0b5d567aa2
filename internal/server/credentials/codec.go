// Package credentials turns plaintext passwords into stored digests and
// checks them back.
package credentials

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultParams matches the cost used for key derivation elsewhere in the codebase.
var DefaultParams = Params{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32}

// Codec hashes passwords with Argon2id keyed by a server-wide pepper.
//
// The digest is deterministic: the same plaintext and pepper always yield the
// same hex string. The login path depends on that, because the directory
// looks a user up by username and digest together.
type Codec struct {
	pepper []byte
	params Params
}

// NewCodec returns a Codec using DefaultParams.
func NewCodec(pepper string) *Codec {
	return NewCodecWithParams(pepper, DefaultParams)
}

func NewCodecWithParams(pepper string, params Params) *Codec {
	return &Codec{pepper: []byte(pepper), params: params}
}

// Hash returns the hex digest of plaintext. The empty string hashes fine.
func (c *Codec) Hash(plaintext string) string {
	key := argon2.IDKey([]byte(plaintext), c.pepper, c.params.Time, c.params.Memory, c.params.Threads, c.params.KeyLen)
	return hex.EncodeToString(key)
}

// Verify reports whether plaintext hashes to digest, comparing in constant time.
func (c *Codec) Verify(plaintext, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Hash(plaintext)), []byte(digest)) == 1
}
