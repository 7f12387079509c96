package mutable

import (
	"context"
	"errors"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/holvi-fs/holvi/pkg/blobdriver"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
)

func TestCurrentVersionIsMaxAcrossDevices(t *testing.T) {
	ctx := context.Background()
	custody, pubKey := testIdentity(t)

	driver := blobdriver.NewInMemory()
	drivers := []blobdriver.Driver{driver}

	writeAs := func(deviceID string, version uint64) {
		raw, err := EncodeEnvelope("data-1", version, []byte("x"), custody)
		assert.Ok(t, err)
		assert.Ok(t, BroadcastPut(ctx, drivers, EnvelopeKey("ds", deviceID, "data-1"), raw, discardLogl()))
	}

	reconciler := NewReconciler("ds", drivers, pubKey, nil)
	devices := []string{"laptop", "phone", "nas"}

	// nobody has recorded anything yet: miss counts as version 0
	version, err := reconciler.CurrentVersion(ctx, "data-1", devices, false)
	assert.Ok(t, err)
	assert.Assert(t, version == 0)

	next, err := reconciler.NextVersion(ctx, "data-1", devices, false)
	assert.Ok(t, err)
	assert.Assert(t, next == 1)

	writeAs("laptop", 4)
	writeAs("phone", 7)
	writeAs("nas", 6)

	version, err = reconciler.CurrentVersion(ctx, "data-1", devices, false)
	assert.Ok(t, err)
	assert.Assert(t, version == 7)

	latest, err := reconciler.Latest(ctx, "data-1", devices, false)
	assert.Ok(t, err)
	assert.Assert(t, latest.Version == 7)

	next, err = reconciler.NextVersion(ctx, "data-1", devices, false)
	assert.Ok(t, err)
	assert.Assert(t, next == 8)
}

func TestStrictModeFailsOnDeviceQueryFault(t *testing.T) {
	ctx := context.Background()
	custody, pubKey := testIdentity(t)

	healthy := blobdriver.NewInMemory()
	drivers := []blobdriver.Driver{healthy}

	raw, err := EncodeEnvelope("data-1", 3, []byte("x"), custody)
	assert.Ok(t, err)
	assert.Ok(t, BroadcastPut(ctx, drivers, EnvelopeKey("ds", "laptop", "data-1"), raw, discardLogl()))

	healthy.FailGets = true

	reconciler := NewReconciler("ds", drivers, pubKey, nil)

	// strict: the fault poisons the whole read
	_, err = reconciler.CurrentVersion(ctx, "data-1", []string{"laptop"}, false)
	assert.Assert(t, errors.Is(err, holvitypes.ErrDriverFault))

	// permissive: proceed with what could be queried (here: nothing)
	version, err := reconciler.CurrentVersion(ctx, "data-1", []string{"laptop"}, true)
	assert.Ok(t, err)
	assert.Assert(t, version == 0)
}

func TestStrictModeFailsOnUnverifiableRecord(t *testing.T) {
	ctx := context.Background()
	custody, _ := testIdentity(t)
	_, wrongPubKey := testIdentity(t)

	driver := blobdriver.NewInMemory()
	drivers := []blobdriver.Driver{driver}

	raw, err := EncodeEnvelope("data-1", 3, []byte("x"), custody)
	assert.Ok(t, err)
	assert.Ok(t, BroadcastPut(ctx, drivers, EnvelopeKey("ds", "laptop", "data-1"), raw, discardLogl()))

	reconciler := NewReconciler("ds", drivers, wrongPubKey, nil)

	_, err = reconciler.Latest(ctx, "data-1", []string{"laptop"}, false)
	assert.Assert(t, errors.Is(err, holvitypes.ErrBadSignature))

	latest, err := reconciler.Latest(ctx, "data-1", []string{"laptop"}, true)
	assert.Ok(t, err)
	assert.Assert(t, latest == nil)
}

func TestBroadcastPutQuorumOfOne(t *testing.T) {
	ctx := context.Background()

	healthy := blobdriver.NewInMemory()
	broken := blobdriver.NewInMemory()
	broken.FailPuts = true

	// minority of drivers failing is still a successful write
	err := BroadcastPut(ctx, []blobdriver.Driver{broken, healthy}, "ds/mutable/d/x", []byte("x"), discardLogl())
	assert.Ok(t, err)

	// .. but all drivers failing is not
	healthy.FailPuts = true
	err = BroadcastPut(ctx, []blobdriver.Driver{broken, healthy}, "ds/mutable/d/x", []byte("x"), discardLogl())
	assert.Assert(t, errors.Is(err, holvitypes.ErrDriverFault))
}
