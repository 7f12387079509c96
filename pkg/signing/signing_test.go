package signing

import (
	"errors"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
)

func TestSignAndVerify(t *testing.T) {
	custody := testCustody(t)

	payload := []byte("the quick brown fox")

	signature, err := custody.Sign(payload, KeyRoleOwner)
	assert.Ok(t, err)

	pubKey, err := custody.PublicKey(KeyRoleOwner)
	assert.Ok(t, err)

	assert.Ok(t, Verify(payload, signature, pubKey))

	// tampered payload must not verify
	err = Verify([]byte("the quick brown fox."), signature, pubKey)
	assert.Assert(t, errors.Is(err, holvitypes.ErrBadSignature))

	// tampered signature must not verify
	signature[len(signature)-1] ^= 0xff
	err = Verify(payload, signature, pubKey)
	assert.Assert(t, errors.Is(err, holvitypes.ErrBadSignature))
}

func TestDeriveDatastoreIDIsDeterministic(t *testing.T) {
	custody := testCustody(t)

	pubKey, err := custody.PublicKey(KeyRoleOwner)
	assert.Ok(t, err)

	first, err := DeriveDatastoreID(pubKey)
	assert.Ok(t, err)

	second, err := DeriveDatastoreID(pubKey)
	assert.Ok(t, err)

	assert.EqualString(t, first, second)
	assert.Assert(t, len(first) == 64) // hex sha256

	// different key => different ID
	otherPem, err := GenEcP256PrivateKeyPem()
	assert.Ok(t, err)
	other, err := NewLocalCustody(otherPem)
	assert.Ok(t, err)
	otherPub, err := other.PublicKey(KeyRoleOwner)
	assert.Ok(t, err)
	otherID, err := DeriveDatastoreID(otherPub)
	assert.Ok(t, err)

	assert.Assert(t, first != otherID)
}

func TestDeviceRoleFallsBackToOwnerKey(t *testing.T) {
	custody := testCustody(t)

	ownerPub, err := custody.PublicKey(KeyRoleOwner)
	assert.Ok(t, err)

	devicePub, err := custody.PublicKey(KeyRoleDevice)
	assert.Ok(t, err)

	assert.Assert(t, ownerPub.Equal(devicePub))

	devicePem, err := GenEcP256PrivateKeyPem()
	assert.Ok(t, err)
	assert.Ok(t, custody.RegisterDeviceKey(devicePem))

	devicePub, err = custody.PublicKey(KeyRoleDevice)
	assert.Ok(t, err)

	assert.Assert(t, !ownerPub.Equal(devicePub))
}

func TestParseRejectsGarbageKey(t *testing.T) {
	_, err := NewLocalCustody([]byte("not a pem"))
	assert.Assert(t, errors.Is(err, holvitypes.ErrInvalidKey))
}

func testCustody(t *testing.T) *LocalCustody {
	privKeyPem, err := GenEcP256PrivateKeyPem()
	assert.Ok(t, err)

	custody, err := NewLocalCustody(privKeyPem)
	assert.Ok(t, err)

	return custody
}
