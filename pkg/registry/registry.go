// Local client state in bbolt: known datastore records, the device set per
// datastore, and the per-inode last-observed version log that backs staleness
// detection.
package registry

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/asdine/storm/codec/msgpack"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
	bolt "go.etcd.io/bbolt"
)

var (
	datastoreBucketName  = []byte("datastores")
	deviceBucketName     = []byte("devices")
	versionLogBucketName = []byte("versionlog")
)

type Registry struct {
	db *bolt.DB
}

func Open(path string) (*Registry, error) {
	db, err := bolt.Open(path, 0700, nil)
	if err != nil {
		return nil, fmt.Errorf("registry open: %v", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucketName := range [][]byte{datastoreBucketName, deviceBucketName, versionLogBucketName} {
			if _, err := tx.CreateBucketIfNotExists(bucketName); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &Registry{db: db}, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) PutDatastore(ds *holvitypes.Datastore) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(datastoreBucketName)

		if bucket.Get([]byte(ds.ID)) != nil {
			return fmt.Errorf("%w: datastore %s", holvitypes.ErrAlreadyExists, ds.ID)
		}

		data, err := msgpack.Codec.Marshal(ds)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(ds.ID), data)
	})
}

func (r *Registry) GetDatastore(id string) (*holvitypes.Datastore, error) {
	ds := &holvitypes.Datastore{}

	if err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(datastoreBucketName).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: datastore %s", holvitypes.ErrNotFound, id)
		}

		return msgpack.Codec.Unmarshal(data, ds)
	}); err != nil {
		return nil, err
	}

	return ds, nil
}

func (r *Registry) ListDatastores() ([]holvitypes.Datastore, error) {
	all := []holvitypes.Datastore{}

	if err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(datastoreBucketName).ForEach(func(key []byte, data []byte) error {
			ds := holvitypes.Datastore{}
			if err := msgpack.Codec.Unmarshal(data, &ds); err != nil {
				return err
			}

			all = append(all, ds)
			return nil
		})
	}); err != nil {
		return nil, err
	}

	return all, nil
}

// DeleteDatastore also drops the datastore's device set and version log.
func (r *Registry) DeleteDatastore(id string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(datastoreBucketName).Get([]byte(id)) == nil {
			return fmt.Errorf("%w: datastore %s", holvitypes.ErrNotFound, id)
		}

		if err := tx.Bucket(datastoreBucketName).Delete([]byte(id)); err != nil {
			return err
		}

		if err := tx.Bucket(deviceBucketName).Delete([]byte(id)); err != nil {
			return err
		}

		versionLog := tx.Bucket(versionLogBucketName)
		cursor := versionLog.Cursor()
		prefix := versionLogKey(id, "")

		keysToDelete := [][]byte{}
		for key, _ := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, _ = cursor.Next() {
			keysToDelete = append(keysToDelete, append([]byte{}, key...))
		}

		for _, key := range keysToDelete {
			if err := versionLog.Delete(key); err != nil {
				return err
			}
		}

		return nil
	})
}

// device set membership is external configuration; the datastore core never
// mutates it
func (r *Registry) SetDeviceIDs(datastoreID string, deviceIDs []string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		data, err := msgpack.Codec.Marshal(deviceIDs)
		if err != nil {
			return err
		}

		return tx.Bucket(deviceBucketName).Put([]byte(datastoreID), data)
	})
}

func (r *Registry) ListDeviceIDs(datastoreID string) ([]string, error) {
	deviceIDs := []string{}

	if err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(deviceBucketName).Get([]byte(datastoreID))
		if data == nil {
			return nil // no device set configured yet
		}

		return msgpack.Codec.Unmarshal(data, &deviceIDs)
	}); err != nil {
		return nil, err
	}

	return deviceIDs, nil
}

// LastObserved returns the highest version this client has ever seen for the
// given inode, 0 if never seen.
func (r *Registry) LastObserved(datastoreID string, uuid string) (uint64, error) {
	version := uint64(0)

	if err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(versionLogBucketName).Get(versionLogKey(datastoreID, uuid))
		if data != nil {
			version = binary.BigEndian.Uint64(data)
		}
		return nil
	}); err != nil {
		return 0, err
	}

	return version, nil
}

// Observe records a version observation. The log only ever goes up, so
// concurrent readers racing here cannot roll anybody's watermark back.
func (r *Registry) Observe(datastoreID string, uuid string, version uint64) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(versionLogBucketName)
		key := versionLogKey(datastoreID, uuid)

		if existing := bucket.Get(key); existing != nil {
			if binary.BigEndian.Uint64(existing) >= version {
				return nil
			}
		}

		data := make([]byte, 8)
		binary.BigEndian.PutUint64(data, version)

		return bucket.Put(key, data)
	})
}

func versionLogKey(datastoreID string, uuid string) []byte {
	return []byte(datastoreID + "/" + uuid)
}
