package mutable

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"log"

	"github.com/function61/gokit/logex"
	"github.com/holvi-fs/holvi/pkg/blobdriver"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
)

// Reconciler computes the authoritative version of a data identifier by asking
// every device's storage view. Version numbers, not device identity, are
// authoritative: ties resolve by taking the maximum value.
type Reconciler struct {
	datastoreID string
	drivers     []blobdriver.Driver
	ownerPubKey *ecdsa.PublicKey
	logl        *logex.Leveled
}

func NewReconciler(datastoreID string, drivers []blobdriver.Driver, ownerPubKey *ecdsa.PublicKey, logger *log.Logger) *Reconciler {
	return &Reconciler{
		datastoreID: datastoreID,
		drivers:     drivers,
		ownerPubKey: ownerPubKey,
		logl:        logex.Levels(logex.NonNil(logger)),
	}
}

// Latest returns the highest-version envelope of dataID across the given
// devices, or nil if no device has recorded it. A device miss counts as
// version 0. In strict mode (permissive=false) any device query fault fails
// the whole read; permissive mode proceeds using only the successfully
// queried devices.
func (r *Reconciler) Latest(ctx context.Context, dataID string, deviceIDs []string, permissive bool) (*holvitypes.Envelope, error) {
	var best *holvitypes.Envelope

	for _, deviceID := range deviceIDs {
		raw, err := fetchAny(ctx, r.drivers, EnvelopeKey(r.datastoreID, deviceID, dataID))
		if err != nil {
			if errors.Is(err, holvitypes.ErrNotFound) {
				continue
			}
			if permissive {
				r.logl.Error.Printf("device %s skipped: %v", deviceID, err)
				continue
			}
			return nil, err
		}

		env, err := DecodeEnvelope(raw, r.ownerPubKey)
		if err != nil {
			// a record we fetched but cannot trust. same strict/permissive
			// treatment as a query fault.
			if permissive {
				r.logl.Error.Printf("device %s skipped: %v", deviceID, err)
				continue
			}
			return nil, err
		}

		if best == nil || env.Version > best.Version {
			best = env
		}
	}

	return best, nil
}

func (r *Reconciler) CurrentVersion(ctx context.Context, dataID string, deviceIDs []string, permissive bool) (uint64, error) {
	best, err := r.Latest(ctx, dataID, deviceIDs, permissive)
	if err != nil {
		return 0, err
	}

	if best == nil {
		return 0, nil
	}

	return best.Version, nil
}

// NextVersion is used for every write. The O(devices) query before each write
// is the price of monotonicity without a central coordinator.
func (r *Reconciler) NextVersion(ctx context.Context, dataID string, deviceIDs []string, permissive bool) (uint64, error) {
	current, err := r.CurrentVersion(ctx, dataID, deviceIDs, permissive)
	if err != nil {
		return 0, err
	}

	return current + 1, nil
}
