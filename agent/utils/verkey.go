package utils

import (
	"crypto/rand"

	"github.com/mr-tron/base58"
)

// NewVerKey generates a new recipient key for connection invitations. The key
// is transported base58 encoded like indy verkeys are.
func NewVerKey() string {
	vk := make([]byte, 32)
	if _, err := rand.Read(vk); err != nil {
		panic("cannot create verkey")
	}
	return base58.Encode(vk)
}
