package dstore

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/holvi-fs/holvi/pkg/blobdriver"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
	"github.com/holvi-fs/holvi/pkg/mutable"
	"github.com/holvi-fs/holvi/pkg/registry"
	"github.com/holvi-fs/holvi/pkg/signing"
)

type testEnv struct {
	store   *Store
	driver  *blobdriver.InMemory
	custody *signing.LocalCustody
	privPem []byte
}

func newTestEnv(t *testing.T, kind holvitypes.DatastoreKind) *testEnv {
	return newTestEnvWithDevices(t, kind, "laptop", []string{"laptop"})
}

func newTestEnvWithDevices(t *testing.T, kind holvitypes.DatastoreKind, localDeviceID string, deviceIDs []string) *testEnv {
	privPem, err := signing.GenEcP256PrivateKeyPem()
	assert.Ok(t, err)

	custody, err := signing.NewLocalCustody(privPem)
	assert.Ok(t, err)

	driver := blobdriver.NewInMemory()

	reg := openTestRegistry(t)

	store, err := CreateDatastore(context.Background(), Config{
		Drivers:       []blobdriver.Driver{driver},
		DeviceIDs:     deviceIDs,
		LocalDeviceID: localDeviceID,
		Custody:       custody,
		VersionLog:    reg,
		Registry:      reg,
	}, kind, []string{"memory"})
	assert.Ok(t, err)

	return &testEnv{
		store:   store,
		driver:  driver,
		custody: custody,
		privPem: privPem,
	}
}

// attach builds another device's view of an existing datastore, sharing its
// driver and device set
func (e *testEnv) attach(t *testing.T, localDeviceID string) *testEnv {
	custody, err := signing.NewLocalCustody(e.privPem)
	assert.Ok(t, err)

	reg := openTestRegistry(t)

	store, err := New(Config{
		Datastore:     e.store.ds,
		Drivers:       []blobdriver.Driver{e.driver},
		DeviceIDs:     e.store.DeviceIDs(),
		LocalDeviceID: localDeviceID,
		Custody:       custody,
		VersionLog:    reg,
		Registry:      reg,
	})
	assert.Ok(t, err)

	return &testEnv{
		store:   store,
		driver:  e.driver,
		custody: custody,
		privPem: e.privPem,
	}
}

func openTestRegistry(t *testing.T) *registry.Registry {
	reg, err := registry.Open(filepath.Join(t.TempDir(), "holvi.db"))
	assert.Ok(t, err)

	t.Cleanup(func() { reg.Close() })

	return reg
}

// raw envelope bytes of an inode as currently stored for the given device
func (e *testEnv) rawEnvelope(t *testing.T, deviceID string, uuid string) []byte {
	content, err := e.driver.Get(context.Background(), mutable.EnvelopeKey(e.store.ds.ID, deviceID, uuid))
	assert.Ok(t, err)
	defer content.Close()

	raw, err := ioutil.ReadAll(content)
	assert.Ok(t, err)

	return raw
}

func (e *testEnv) pokeEnvelope(deviceID string, uuid string, raw []byte) {
	e.driver.Poke(mutable.EnvelopeKey(e.store.ds.ID, deviceID, uuid), raw)
}
