package utils

import (
	"crypto/rand"
	"math"
	"math/big"
	"strconv"

	"github.com/google/uuid"
)

func gen() uint64 {
	m := big.NewInt(math.MaxInt64)
	r, err := rand.Int(rand.Reader, m)
	if err != nil {
		panic("cannot create nonce")
	}
	return r.Uint64()
}

// NewNonce generates new uint64 nonce with Go's crypto package.
func NewNonce() uint64 {
	return gen()
}

// NewNonceStr generates new nonce with Go's crypto package, and returns value
// as string. Credential offers carry their nonce in this format.
func NewNonceStr() string {
	return NonceToStr(NewNonce())
}

// UUID generates a new identifier and returns the value as string.
func UUID() string {
	return uuid.New().String()
}

func NonceToStr(n uint64) string {
	return strconv.FormatUint(n, 10)
}
