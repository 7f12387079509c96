package mutable

import (
	"context"
	"errors"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/holvi-fs/holvi/pkg/blobdriver"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
)

func TestMakeTombstonesOnePerDevice(t *testing.T) {
	tombstones := MakeTombstones("data-1", []string{"laptop", "phone"})

	assert.Assert(t, len(tombstones) == 2)
	assert.EqualString(t, tombstones[0].DeviceID, "laptop")
	assert.EqualString(t, tombstones[1].DeviceID, "phone")
	assert.Assert(t, !tombstones[0].Signed())
}

func TestSignAndVerifyTombstones(t *testing.T) {
	custody, pubKey := testIdentity(t)
	_, wrongPubKey := testIdentity(t)

	signed, err := SignTombstones(MakeTombstones("data-1", []string{"laptop"}), custody)
	assert.Ok(t, err)
	assert.Assert(t, signed[0].Signed())

	assert.Ok(t, VerifyTombstone(&signed[0], pubKey))

	err = VerifyTombstone(&signed[0], wrongPubKey)
	assert.Assert(t, errors.Is(err, holvitypes.ErrBadSignature))
}

func TestTombstoneManager(t *testing.T) {
	ctx := context.Background()
	custody, pubKey := testIdentity(t)

	driver := blobdriver.NewInMemory()
	drivers := []blobdriver.Driver{driver}

	manager := NewTombstoneManager("ds", drivers, custody, pubKey, nil)
	devices := []string{"laptop", "phone"}

	tombstoned, err := manager.IsTombstonedOnAnyDevice(ctx, "data-1", devices)
	assert.Ok(t, err)
	assert.Assert(t, !tombstoned)

	assert.Ok(t, manager.PutTombstones(ctx, "data-1", devices))

	for _, deviceID := range devices {
		tombstoned, err := manager.IsTombstoned(ctx, "data-1", deviceID)
		assert.Ok(t, err)
		assert.Assert(t, tombstoned)
	}

	// other data IDs unaffected
	tombstoned, err = manager.IsTombstonedOnAnyDevice(ctx, "data-2", devices)
	assert.Ok(t, err)
	assert.Assert(t, !tombstoned)
}

func TestForgedTombstoneIsIgnored(t *testing.T) {
	ctx := context.Background()
	_, pubKey := testIdentity(t)
	attacker, _ := testIdentity(t)

	driver := blobdriver.NewInMemory()
	drivers := []blobdriver.Driver{driver}

	// attacker with driver write access plants a tombstone signed with their own key
	forged, err := SignTombstones(MakeTombstones("data-1", []string{"laptop"}), attacker)
	assert.Ok(t, err)
	driver.Poke(TombstoneKey("ds", "laptop", "data-1"), mustMarshal(t, &forged[0]))

	manager := NewTombstoneManager("ds", drivers, nil, pubKey, nil)

	tombstoned, err := manager.IsTombstoned(ctx, "data-1", "laptop")
	assert.Ok(t, err)
	assert.Assert(t, !tombstoned)

	// garbage bytes likewise
	driver.Poke(TombstoneKey("ds", "laptop", "data-1"), []byte{0xc1})
	tombstoned, err = manager.IsTombstoned(ctx, "data-1", "laptop")
	assert.Ok(t, err)
	assert.Assert(t, !tombstoned)
}
