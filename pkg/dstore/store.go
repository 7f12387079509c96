// The signed datastore filesystem: inode model, path resolution, directory and
// file operations over untrusted storage drivers shared by multiple devices.
package dstore

import (
	"crypto/ecdsa"
	"errors"
	"log"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/sliceutil"
	"github.com/holvi-fs/holvi/pkg/blobdriver"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
	"github.com/holvi-fs/holvi/pkg/mutable"
	"github.com/holvi-fs/holvi/pkg/signing"
)

// VersionLog persists the highest version this client has observed per inode,
// so that a lagging driver cannot silently serve us older data than we've
// already seen.
type VersionLog interface {
	LastObserved(datastoreID string, uuid string) (uint64, error)
	Observe(datastoreID string, uuid string, version uint64) error
}

// DatastoreRegistry keeps records of known datastores.
type DatastoreRegistry interface {
	PutDatastore(ds *holvitypes.Datastore) error
	GetDatastore(id string) (*holvitypes.Datastore, error)
	DeleteDatastore(id string) error
}

// DeviceRegistry answers which device IDs are authorized to write a datastore.
// Membership is external configuration; the core never mutates it.
type DeviceRegistry interface {
	ListDeviceIDs(datastoreID string) ([]string, error)
}

// Config is passed explicitly into every Store; there is no package-level
// shared state.
type Config struct {
	Datastore     *holvitypes.Datastore
	Drivers       []blobdriver.Driver
	DeviceIDs     []string // ordered device set of the datastore
	LocalDeviceID string   // which device we are; must be in DeviceIDs
	Custody       signing.Custody
	VersionLog    VersionLog
	Registry      DatastoreRegistry // optional; nil skips local record upkeep
	Logger        *log.Logger
}

type Store struct {
	ds               *holvitypes.Datastore
	drivers          []blobdriver.Driver
	deviceIDs        []string
	localDeviceID    string
	custody          signing.Custody
	ownerPubKey      *ecdsa.PublicKey
	ownerFingerprint string
	versions         VersionLog
	registry         DatastoreRegistry
	reconciler       *mutable.Reconciler
	tombstones       *mutable.TombstoneManager
	logl             *logex.Leveled
}

func New(conf Config) (*Store, error) {
	if conf.Datastore == nil || conf.Custody == nil || conf.VersionLog == nil {
		return nil, errors.New("dstore: incomplete config")
	}

	if len(conf.Drivers) == 0 {
		return nil, errors.New("dstore: need at least one storage driver")
	}

	if !sliceutil.ContainsString(conf.DeviceIDs, conf.LocalDeviceID) {
		return nil, errors.New("dstore: local device is not in the datastore's device set")
	}

	ownerPubKey, err := conf.Custody.PublicKey(signing.KeyRoleOwner)
	if err != nil {
		return nil, err
	}

	derivedID, err := signing.DeriveDatastoreID(ownerPubKey)
	if err != nil {
		return nil, err
	}

	if derivedID != conf.Datastore.ID {
		return nil, errors.New("dstore: owner key does not match datastore ID")
	}

	fingerprint, err := signing.PublicKeyFingerprint(ownerPubKey)
	if err != nil {
		return nil, err
	}

	return &Store{
		ds:               conf.Datastore,
		drivers:          conf.Drivers,
		deviceIDs:        conf.DeviceIDs,
		localDeviceID:    conf.LocalDeviceID,
		custody:          conf.Custody,
		ownerPubKey:      ownerPubKey,
		ownerFingerprint: fingerprint,
		versions:         conf.VersionLog,
		registry:         conf.Registry,
		reconciler:       mutable.NewReconciler(conf.Datastore.ID, conf.Drivers, ownerPubKey, conf.Logger),
		tombstones:       mutable.NewTombstoneManager(conf.Datastore.ID, conf.Drivers, conf.Custody, ownerPubKey, conf.Logger),
		logl:             logex.Levels(logex.NonNil(conf.Logger)),
	}, nil
}

func (s *Store) Datastore() *holvitypes.Datastore {
	return s.ds
}

func (s *Store) DeviceIDs() []string {
	return s.deviceIDs
}
