// Datastore identity: ECDSA keypairs, datastore ID derivation and
// sign/verify over serialized payloads.
package signing

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"fmt"

	"github.com/function61/gokit/cryptoutil"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
	sha256 "github.com/minio/sha256-simd"
)

type KeyRole string

const (
	KeyRoleOwner  KeyRole = "owner"
	KeyRoleDevice KeyRole = "device"
)

// Custody hides private key material from the datastore core. The core only
// ever asks for signatures and public keys per role.
type Custody interface {
	Sign(payload []byte, role KeyRole) ([]byte, error)
	PublicKey(role KeyRole) (*ecdsa.PublicKey, error)
}

// DeriveDatastoreID derives the datastore's identity from its owner public
// key. Deterministic: same key always yields the same ID.
func DeriveDatastoreID(pubKey *ecdsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pubKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", holvitypes.ErrInvalidKey, err)
	}

	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:]), nil
}

// PublicKeyFingerprint is the short form recorded inside inodes to bind them
// to a datastore identity.
func PublicKeyFingerprint(pubKey *ecdsa.PublicKey) (string, error) {
	id, err := DeriveDatastoreID(pubKey)
	if err != nil {
		return "", err
	}

	return id[0:16], nil
}

func Sign(payload []byte, privKey *ecdsa.PrivateKey) ([]byte, error) {
	digest := sha256.Sum256(payload)

	signature, err := ecdsa.SignASN1(rand.Reader, privKey, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", holvitypes.ErrInvalidKey, err)
	}

	return signature, nil
}

func Verify(payload []byte, signature []byte, pubKey *ecdsa.PublicKey) error {
	digest := sha256.Sum256(payload)

	if !ecdsa.VerifyASN1(pubKey, digest[:], signature) {
		return holvitypes.ErrBadSignature
	}

	return nil
}

// LocalCustody keeps per-role private keys in process memory. The owner key is
// mandatory; the device key falls back to the owner key when not configured
// (single-device datastores).
type LocalCustody struct {
	keys map[KeyRole]*ecdsa.PrivateKey
}

func NewLocalCustody(ownerPrivKeyPem []byte) (*LocalCustody, error) {
	owner, err := parseEcdsaPrivateKeyPem(ownerPrivKeyPem)
	if err != nil {
		return nil, err
	}

	return &LocalCustody{keys: map[KeyRole]*ecdsa.PrivateKey{
		KeyRoleOwner: owner,
	}}, nil
}

func (l *LocalCustody) RegisterDeviceKey(devicePrivKeyPem []byte) error {
	device, err := parseEcdsaPrivateKeyPem(devicePrivKeyPem)
	if err != nil {
		return err
	}

	l.keys[KeyRoleDevice] = device
	return nil
}

func (l *LocalCustody) Sign(payload []byte, role KeyRole) ([]byte, error) {
	key, err := l.key(role)
	if err != nil {
		return nil, err
	}

	return Sign(payload, key)
}

func (l *LocalCustody) PublicKey(role KeyRole) (*ecdsa.PublicKey, error) {
	key, err := l.key(role)
	if err != nil {
		return nil, err
	}

	return &key.PublicKey, nil
}

func (l *LocalCustody) key(role KeyRole) (*ecdsa.PrivateKey, error) {
	if key, found := l.keys[role]; found {
		return key, nil
	}

	// device role falls back to owner key
	if role == KeyRoleDevice {
		if key, found := l.keys[KeyRoleOwner]; found {
			return key, nil
		}
	}

	return nil, fmt.Errorf("%w: no private key for role %s", holvitypes.ErrInvalidKey, role)
}

func GenEcP256PrivateKeyPem() ([]byte, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	privateKeyX509, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	return cryptoutil.MarshalPemBytes(privateKeyX509, cryptoutil.PemTypeEcPrivateKey), nil
}

func parseEcdsaPrivateKeyPem(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	privateKey, err := cryptoutil.ParsePemEncodedPrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", holvitypes.ErrInvalidKey, err)
	}

	ecKey, is := privateKey.(*ecdsa.PrivateKey)
	if !is {
		return nil, fmt.Errorf("%w: expecting ECDSA, got %T", holvitypes.ErrInvalidKey, privateKey)
	}

	return ecKey, nil
}
