package mutable

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/function61/gokit/logex"
	"github.com/hashicorp/go-multierror"
	"github.com/holvi-fs/holvi/pkg/blobdriver"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
)

// Drivers are redundant replicas, not a consensus group: a write counts as
// successful if at least one driver accepted it ("best effort broadcast").
func BroadcastPut(ctx context.Context, drivers []blobdriver.Driver, key string, raw []byte, logl *logex.Leveled) error {
	var allErrors *multierror.Error
	succeeded := 0

	for _, driver := range drivers {
		if err := driver.Put(ctx, key, bytes.NewReader(raw)); err != nil {
			logl.Error.Printf("put %s: %v", key, err)
			allErrors = multierror.Append(allErrors, err)
			continue
		}

		succeeded++
	}

	if succeeded == 0 {
		return fmt.Errorf("%w: put %s: %v", holvitypes.ErrDriverFault, key, allErrors.ErrorOrNil())
	}

	return nil
}

// best-effort: misses and driver faults are only logged
func BroadcastDelete(ctx context.Context, drivers []blobdriver.Driver, key string, logl *logex.Leveled) {
	for _, driver := range drivers {
		if err := driver.Delete(ctx, key); err != nil {
			logl.Error.Printf("delete %s: %v", key, err)
		}
	}
}

// fetchAny tries drivers in their configured order. A miss on every driver is
// holvitypes.ErrNotFound; a fault on any driver (with misses elsewhere) is
// ErrDriverFault so that the caller can tell "nobody has it" from "someone
// might have it but we couldn't ask".
func fetchAny(ctx context.Context, drivers []blobdriver.Driver, key string) ([]byte, error) {
	var allErrors *multierror.Error
	misses := 0

	for _, driver := range drivers {
		content, err := driver.Get(ctx, key)
		if err != nil {
			if os.IsNotExist(err) {
				misses++
			} else {
				allErrors = multierror.Append(allErrors, err)
			}
			continue
		}

		raw, err := ioutil.ReadAll(content)
		content.Close()
		if err != nil {
			allErrors = multierror.Append(allErrors, err)
			continue
		}

		return raw, nil
	}

	if misses == len(drivers) {
		return nil, fmt.Errorf("%w: %s", holvitypes.ErrNotFound, key)
	}

	return nil, fmt.Errorf("%w: get %s: %v", holvitypes.ErrDriverFault, key, allErrors.ErrorOrNil())
}
