package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holvi-fs/holvi/pkg/blobdriver"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
	"github.com/holvi-fs/holvi/pkg/holviutils"
	"github.com/holvi-fs/holvi/pkg/mutable"
	"github.com/holvi-fs/holvi/pkg/signing"
)

// CreateDatastore derives the datastore's ID from the owner public key, writes
// the (empty) root directory inode to the storage drivers and records the
// datastore in the local registry. conf.Datastore is filled in by this call.
func CreateDatastore(ctx context.Context, conf Config, kind holvitypes.DatastoreKind, driverNames []string) (*Store, error) {
	ownerPubKey, err := conf.Custody.PublicKey(signing.KeyRoleOwner)
	if err != nil {
		return nil, err
	}

	id, err := signing.DeriveDatastoreID(ownerPubKey)
	if err != nil {
		return nil, err
	}

	if conf.Registry != nil {
		if _, err := conf.Registry.GetDatastore(id); err == nil {
			return nil, fmt.Errorf("create datastore %s: %w", id, holvitypes.ErrAlreadyExists)
		} else if !errors.Is(err, holvitypes.ErrNotFound) {
			return nil, err
		}
	}

	conf.Datastore = &holvitypes.Datastore{
		ID:       id,
		Kind:     kind,
		RootUUID: holviutils.NewInodeUUID(),
		Drivers:  driverNames,
		Created:  time.Now().UTC(),
	}

	store, err := New(conf)
	if err != nil {
		return nil, err
	}

	// refuse to scribble envelopes into a misconfigured storage location
	for _, driver := range conf.Drivers {
		if err := driver.Mountable(ctx); err != nil {
			return nil, fmt.Errorf("create datastore %s: driver not mountable: %w", id, err)
		}
	}

	root := holvitypes.NewDirectoryInode(conf.Datastore.RootUUID, holvitypes.NoParentUUID, store.ownerFingerprint, store.localDeviceID)

	if _, err := store.saveInode(ctx, root, false); err != nil {
		return nil, fmt.Errorf("create datastore %s: %w", id, err)
	}

	// record last so that a crash mid-create leaves orphaned driver keys, not a
	// half-registered datastore
	if conf.Registry != nil {
		if err := conf.Registry.PutDatastore(conf.Datastore); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// DeleteDatastore empties the tree, tombstones the root and sweeps every
// remaining key under the datastore's namespace off the drivers. With force it
// proceeds past rmtree/tombstone failures.
func (s *Store) DeleteDatastore(ctx context.Context, force bool) error {
	if _, err := s.Rmtree(ctx, "/", force); err != nil && !force {
		return fmt.Errorf("delete datastore: %w", err)
	}

	if err := s.removeInodeData(ctx, s.ds.RootUUID); err != nil && !force {
		return fmt.Errorf("delete datastore: %w", err)
	}

	// tombstones included; after this nothing of the datastore remains on
	// drivers that support enumeration
	prefix := mutable.NamespacePrefix(s.ds.ID)
	for _, driver := range s.drivers {
		lister, able := driver.(blobdriver.Lister)
		if !able {
			continue
		}

		keys, err := lister.List(ctx, prefix)
		if err != nil {
			s.logl.Error.Printf("namespace sweep: %v", err)
			continue
		}

		for _, key := range keys {
			if err := driver.Delete(ctx, key); err != nil {
				s.logl.Error.Printf("namespace sweep %s: %v", key, err)
			}
		}
	}

	if s.registry != nil {
		if err := s.registry.DeleteDatastore(s.ds.ID); err != nil {
			return err
		}
	}

	return nil
}
