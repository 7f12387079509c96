// Mutable data envelope: the versioned, signed wire record wrapping all inode
// and file payloads. This layer does not interpret the payload.
package mutable

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/holvi-fs/holvi/pkg/holvitypes"
	"github.com/holvi-fs/holvi/pkg/signing"
	"github.com/vmihailenco/msgpack"
)

// the portion the signature covers. signature lives outside so that it can
// cover these exact bytes.
type envelopeSignedPortion struct {
	DataID  string
	Version uint64
	Payload []byte
}

func EncodeEnvelope(dataID string, version uint64, payload []byte, custody signing.Custody) ([]byte, error) {
	signedBytes, err := msgpack.Marshal(&envelopeSignedPortion{
		DataID:  dataID,
		Version: version,
		Payload: payload,
	})
	if err != nil {
		return nil, err
	}

	signature, err := custody.Sign(signedBytes, signing.KeyRoleOwner)
	if err != nil {
		return nil, err
	}

	return msgpack.Marshal(&holvitypes.Envelope{
		DataID:    dataID,
		Version:   version,
		Payload:   payload,
		Signature: signature,
	})
}

// BadFormat and BadSignature are distinct failures on purpose: callers react
// differently (reject record vs. suspect tampering).
func DecodeEnvelope(raw []byte, ownerPubKey *ecdsa.PublicKey) (*holvitypes.Envelope, error) {
	env := &holvitypes.Envelope{}
	if err := msgpack.Unmarshal(raw, env); err != nil {
		return nil, fmt.Errorf("%w: %v", holvitypes.ErrBadFormat, err)
	}

	if env.DataID == "" || len(env.Signature) == 0 {
		return nil, fmt.Errorf("%w: missing data ID or signature", holvitypes.ErrBadFormat)
	}

	signedBytes, err := msgpack.Marshal(&envelopeSignedPortion{
		DataID:  env.DataID,
		Version: env.Version,
		Payload: env.Payload,
	})
	if err != nil {
		return nil, err
	}

	if err := signing.Verify(signedBytes, env.Signature, ownerPubKey); err != nil {
		return nil, fmt.Errorf("envelope %s: %w", env.DataID, err)
	}

	return env, nil
}
