package dstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/holvi-fs/holvi/pkg/holvitypes"
	"github.com/holvi-fs/holvi/pkg/holviutils"
	"github.com/holvi-fs/holvi/pkg/mutable"
	sha256 "github.com/minio/sha256-simd"
	"github.com/vmihailenco/msgpack"
)

func (s *Store) newDirectoryInode(parentUUID string) *holvitypes.Inode {
	return holvitypes.NewDirectoryInode(holviutils.NewInodeUUID(), parentUUID, s.ownerFingerprint, s.localDeviceID)
}

func (s *Store) newFileInode(parentUUID string) *holvitypes.Inode {
	return holvitypes.NewFileInode(holviutils.NewInodeUUID(), parentUUID, s.ownerFingerprint, s.localDeviceID)
}

// loadInode fetches the authoritative (highest-version) revision of an inode
// across all devices. force bypasses tombstone and staleness rejection - a
// deliberate, explicit trust override, never automatic.
func (s *Store) loadInode(ctx context.Context, uuid string, force bool) (*holvitypes.Inode, error) {
	if !force {
		tombstoned, err := s.tombstones.IsTombstonedOnAnyDevice(ctx, uuid, s.deviceIDs)
		if err != nil {
			return nil, err
		}

		if tombstoned {
			return nil, fmt.Errorf("inode %s: %w", uuid, holvitypes.ErrTombstoned)
		}
	}

	env, err := s.reconciler.Latest(ctx, uuid, s.deviceIDs, force)
	if err != nil {
		return nil, fmt.Errorf("inode %s: %w", uuid, err)
	}

	if env == nil {
		return nil, fmt.Errorf("inode %s: %w", uuid, holvitypes.ErrNotFound)
	}

	inode, err := decodeInodePayload(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("inode %s: %w", uuid, err)
	}

	if inode.UUID != uuid {
		return nil, fmt.Errorf("inode %s: %w: envelope carries inode %s", uuid, holvitypes.ErrBadFormat, inode.UUID)
	}

	if inode.OwnerFingerprint != s.ownerFingerprint {
		return nil, fmt.Errorf("inode %s: %w: not bound to this datastore", uuid, holvitypes.ErrBadSignature)
	}

	if inode.Kind == holvitypes.InodeKindFile {
		sum := sha256.Sum256(inode.File.Content)
		if !bytes.Equal(sum[:], inode.File.Sha256) {
			return nil, fmt.Errorf("inode %s: %w: content hash mismatch", uuid, holvitypes.ErrBadFormat)
		}
	}

	inode.Version = env.Version

	if !force {
		lastObserved, err := s.versions.LastObserved(s.ds.ID, uuid)
		if err != nil {
			return nil, err
		}

		if env.Version < lastObserved {
			return nil, fmt.Errorf("inode %s: read version %d < observed %d: %w",
				uuid, env.Version, lastObserved, holvitypes.ErrStaleData)
		}
	}

	if err := s.versions.Observe(s.ds.ID, uuid, env.Version); err != nil {
		return nil, err
	}

	return inode, nil
}

// saveInode asks every device for the current version, writes version+1 under
// our own device key and broadcasts to all drivers (quorum-of-one).
func (s *Store) saveInode(ctx context.Context, inode *holvitypes.Inode, force bool) (uint64, error) {
	version, err := s.reconciler.NextVersion(ctx, inode.UUID, s.deviceIDs, force)
	if err != nil {
		return 0, fmt.Errorf("inode %s: %w", inode.UUID, err)
	}

	inode.Version = version
	inode.DeviceID = s.localDeviceID

	payload, err := msgpack.Marshal(inode)
	if err != nil {
		return 0, err
	}

	raw, err := mutable.EncodeEnvelope(inode.UUID, version, payload, s.custody)
	if err != nil {
		return 0, err
	}

	key := mutable.EnvelopeKey(s.ds.ID, s.localDeviceID, inode.UUID)
	if err := mutable.BroadcastPut(ctx, s.drivers, key, raw, s.logl); err != nil {
		return 0, err
	}

	if err := s.versions.Observe(s.ds.ID, inode.UUID, version); err != nil {
		return 0, err
	}

	return version, nil
}

// removeInodeData tombstones the inode for every device in the device set
// (only then is it considered deleted) and best-effort deletes the envelope
// bytes themselves.
func (s *Store) removeInodeData(ctx context.Context, uuid string) error {
	if err := s.tombstones.PutTombstones(ctx, uuid, s.deviceIDs); err != nil {
		return fmt.Errorf("inode %s: %w", uuid, err)
	}

	for _, deviceID := range s.deviceIDs {
		mutable.BroadcastDelete(ctx, s.drivers, mutable.EnvelopeKey(s.ds.ID, deviceID, uuid), s.logl)
	}

	return nil
}

func decodeInodePayload(payload []byte) (*holvitypes.Inode, error) {
	inode := &holvitypes.Inode{}
	if err := msgpack.Unmarshal(payload, inode); err != nil {
		return nil, fmt.Errorf("%w: %v", holvitypes.ErrBadFormat, err)
	}

	// tagged variant: the payload present must match the kind tag
	switch inode.Kind {
	case holvitypes.InodeKindDirectory:
		if inode.Directory == nil || inode.File != nil {
			return nil, fmt.Errorf("%w: directory inode without directory payload", holvitypes.ErrBadFormat)
		}
		if inode.Directory.Entries == nil {
			inode.Directory.Entries = map[string]holvitypes.DirEntry{}
		}
	case holvitypes.InodeKindFile:
		if inode.File == nil || inode.Directory != nil {
			return nil, fmt.Errorf("%w: file inode without file payload", holvitypes.ErrBadFormat)
		}
	default:
		return nil, fmt.Errorf("%w: unknown inode kind: %s", holvitypes.ErrBadFormat, inode.Kind)
	}

	return inode, nil
}
