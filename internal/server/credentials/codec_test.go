package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// cheap parameters keep the suite fast
var testParams = Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32}

func TestCodec_HashIsDeterministic(t *testing.T) {
	c := NewCodecWithParams("pepper", testParams)

	a := c.Hash("secret")
	b := c.Hash("secret")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, "secret", a)
}

func TestCodec_DifferentInputsDiffer(t *testing.T) {
	c := NewCodecWithParams("pepper", testParams)

	assert.NotEqual(t, c.Hash("secret"), c.Hash("secreT"))
	assert.NotEqual(t, c.Hash(""), c.Hash(" "))
}

func TestCodec_PepperChangesDigest(t *testing.T) {
	a := NewCodecWithParams("pepper-a", testParams)
	b := NewCodecWithParams("pepper-b", testParams)

	assert.NotEqual(t, a.Hash("secret"), b.Hash("secret"))
}

func TestCodec_Verify(t *testing.T) {
	c := NewCodecWithParams("pepper", testParams)
	digest := c.Hash("secret")

	tests := []struct {
		name      string
		plaintext string
		digest    string
		want      bool
	}{
		{name: "match", plaintext: "secret", digest: digest, want: true},
		{name: "wrong password", plaintext: "Secret", digest: digest, want: false},
		{name: "empty digest", plaintext: "secret", digest: "", want: false},
		{name: "empty password hashes", plaintext: "", digest: c.Hash(""), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Verify(tt.plaintext, tt.digest))
		})
	}
}

func TestNewCodec_UsesDefaultParams(t *testing.T) {
	c := NewCodec("pepper")
	assert.Equal(t, DefaultParams, c.params)
}
