package sessions

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
)

const (
	handleRandomLen = 32
	handleMACLen    = sha256.Size
	// base64url without padding of 64 bytes
	handleLen = 86
)

// handles mints and checks session handles: 32 random bytes followed by an
// HMAC-SHA256 tag over them. Only handles minted with the same secret pass
// check, so a client cannot pick its own session key.
type handles struct {
	secret []byte
}

func (h handles) mint() (string, error) {
	b, err := common.RandBytes(handleRandomLen)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.sign(b)), nil
}

func (h handles) sign(random []byte) []byte {
	mac := hmac.New(sha256.New, h.secret)
	_, _ = mac.Write(random)
	return mac.Sum(random)
}

func (h handles) check(handle string) bool {
	if len(handle) != handleLen {
		return false
	}
	b, err := base64.RawURLEncoding.DecodeString(handle)
	if err != nil || len(b) != handleRandomLen+handleMACLen {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	_, _ = mac.Write(b[:handleRandomLen])
	return hmac.Equal(mac.Sum(nil), b[handleRandomLen:])
}
