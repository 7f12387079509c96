package mutable

import (
	"crypto/ecdsa"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/function61/gokit/logex"
	"github.com/holvi-fs/holvi/pkg/signing"
	"github.com/vmihailenco/msgpack"
)

func discardLogl() *logex.Leveled {
	return logex.Levels(logex.Discard)
}

func testIdentity(t *testing.T) (signing.Custody, *ecdsa.PublicKey) {
	privKeyPem, err := signing.GenEcP256PrivateKeyPem()
	assert.Ok(t, err)

	custody, err := signing.NewLocalCustody(privKeyPem)
	assert.Ok(t, err)

	pubKey, err := custody.PublicKey(signing.KeyRoleOwner)
	assert.Ok(t, err)

	return custody, pubKey
}

func mustMarshal(t *testing.T, record interface{}) []byte {
	raw, err := msgpack.Marshal(record)
	assert.Ok(t, err)
	return raw
}
