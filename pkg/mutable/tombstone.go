package mutable

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/hashicorp/go-multierror"
	"github.com/holvi-fs/holvi/pkg/blobdriver"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
	"github.com/holvi-fs/holvi/pkg/signing"
	"github.com/vmihailenco/msgpack"
)

type tombstoneSignedPortion struct {
	DataID   string
	DeviceID string
	Created  time.Time
}

// one unsigned tombstone per device ID
func MakeTombstones(dataID string, deviceIDs []string) []holvitypes.Tombstone {
	created := time.Now().UTC()

	tombstones := []holvitypes.Tombstone{}
	for _, deviceID := range deviceIDs {
		tombstones = append(tombstones, holvitypes.Tombstone{
			DataID:   dataID,
			DeviceID: deviceID,
			Created:  created,
		})
	}

	return tombstones
}

func SignTombstones(tombstones []holvitypes.Tombstone, custody signing.Custody) ([]holvitypes.Tombstone, error) {
	signed := []holvitypes.Tombstone{}

	for _, tombstone := range tombstones {
		signedBytes, err := msgpack.Marshal(&tombstoneSignedPortion{
			DataID:   tombstone.DataID,
			DeviceID: tombstone.DeviceID,
			Created:  tombstone.Created,
		})
		if err != nil {
			return nil, err
		}

		signature, err := custody.Sign(signedBytes, signing.KeyRoleOwner)
		if err != nil {
			return nil, err
		}

		tombstone.Signature = signature
		signed = append(signed, tombstone)
	}

	return signed, nil
}

func VerifyTombstone(tombstone *holvitypes.Tombstone, ownerPubKey *ecdsa.PublicKey) error {
	signedBytes, err := msgpack.Marshal(&tombstoneSignedPortion{
		DataID:   tombstone.DataID,
		DeviceID: tombstone.DeviceID,
		Created:  tombstone.Created,
	})
	if err != nil {
		return err
	}

	if err := signing.Verify(signedBytes, tombstone.Signature, ownerPubKey); err != nil {
		return fmt.Errorf("tombstone %s@%s: %w", tombstone.DataID, tombstone.DeviceID, err)
	}

	return nil
}

// TombstoneManager writes and checks the signed deletion markers. A reader must
// consult it before treating a stale-looking envelope as current.
type TombstoneManager struct {
	datastoreID string
	drivers     []blobdriver.Driver
	custody     signing.Custody
	ownerPubKey *ecdsa.PublicKey
	logl        *logex.Leveled
}

func NewTombstoneManager(datastoreID string, drivers []blobdriver.Driver, custody signing.Custody, ownerPubKey *ecdsa.PublicKey, logger *log.Logger) *TombstoneManager {
	return &TombstoneManager{
		datastoreID: datastoreID,
		drivers:     drivers,
		custody:     custody,
		ownerPubKey: ownerPubKey,
		logl:        logex.Levels(logex.NonNil(logger)),
	}
}

// PutTombstones makes, signs and stores a tombstone for every device ID given.
// The data is only considered deleted once every device's tombstone is stored,
// so a failure for any device fails the whole call (safe to retry: already
// stored tombstones are simply overwritten).
func (t *TombstoneManager) PutTombstones(ctx context.Context, dataID string, deviceIDs []string) error {
	signed, err := SignTombstones(MakeTombstones(dataID, deviceIDs), t.custody)
	if err != nil {
		return err
	}

	var allErrors *multierror.Error

	for _, tombstone := range signed {
		raw, err := msgpack.Marshal(&tombstone)
		if err != nil {
			return err
		}

		key := TombstoneKey(t.datastoreID, tombstone.DeviceID, dataID)
		if err := BroadcastPut(ctx, t.drivers, key, raw, t.logl); err != nil {
			allErrors = multierror.Append(allErrors, err)
		}
	}

	return allErrors.ErrorOrNil()
}

// IsTombstoned reports whether the given device recognizes dataID as deleted.
// Unverifiable tombstones (bad signature, garbage bytes) are ignored with a
// log entry: an attacker able to write to a driver must not be able to censor
// data with forged tombstones.
func (t *TombstoneManager) IsTombstoned(ctx context.Context, dataID string, deviceID string) (bool, error) {
	raw, err := fetchAny(ctx, t.drivers, TombstoneKey(t.datastoreID, deviceID, dataID))
	if err != nil {
		if errors.Is(err, holvitypes.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	tombstone := &holvitypes.Tombstone{}
	if err := msgpack.Unmarshal(raw, tombstone); err != nil {
		t.logl.Error.Printf("ignoring malformed tombstone for %s@%s: %v", dataID, deviceID, err)
		return false, nil
	}

	if err := VerifyTombstone(tombstone, t.ownerPubKey); err != nil {
		t.logl.Error.Printf("ignoring unverifiable tombstone: %v", err)
		return false, nil
	}

	return true, nil
}

// any device's tombstone suffices to consider the data deleted on read
func (t *TombstoneManager) IsTombstonedOnAnyDevice(ctx context.Context, dataID string, deviceIDs []string) (bool, error) {
	for _, deviceID := range deviceIDs {
		tombstoned, err := t.IsTombstoned(ctx, dataID, deviceID)
		if err != nil {
			return false, err
		}

		if tombstoned {
			return true, nil
		}
	}

	return false, nil
}
