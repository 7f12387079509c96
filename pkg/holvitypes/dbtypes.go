package holvitypes

import (
	"time"
)

type DatastoreKind string

const (
	// hierarchical directory tree
	DatastoreKindTree DatastoreKind = "datastore"
	// flat, single-level namespace
	DatastoreKindCollection DatastoreKind = "collection"
)

// Datastore identifies one signed filesystem namespace. Owned exclusively by the
// holder of the corresponding private key; immutable after creation except for
// the root inode's content.
type Datastore struct {
	ID       string // derived from owner public key, see signing.DeriveDatastoreID()
	Kind     DatastoreKind
	RootUUID string
	Drivers  []string // ordered storage driver names used for reads/writes
	Created  time.Time
}

type InodeKind string

const (
	InodeKindFile      InodeKind = "file"
	InodeKindDirectory InodeKind = "directory"
)

const NoParentUUID = ""

// Inode is a versioned, signed unit of the tree. Exactly one of Directory/File
// is set, matching Kind.
type Inode struct {
	UUID             string
	Kind             InodeKind
	OwnerFingerprint string // binds the inode to a datastore identity
	Version          uint64 // authoritative version = max currently known across devices
	DeviceID         string // device that wrote this revision
	ParentUUID       string // NoParentUUID for the root directory
	Directory        *DirectoryPayload
	File             *FilePayload
}

func (i *Inode) IsDir() bool {
	return i.Kind == InodeKindDirectory
}

type DirectoryPayload struct {
	Entries map[string]DirEntry // keyed by child name, unique within the directory
}

type DirEntry struct {
	UUID string
	Kind InodeKind
}

type FilePayload struct {
	Content []byte
	Sha256  []byte // content hash, verified on load
	Size    int64
}

// Envelope is the signed wire record wrapping an inode or file payload - the
// unit actually read/written to storage drivers. Signature covers
// (DataID, Version, Payload).
type Envelope struct {
	DataID    string
	Version   uint64
	Payload   []byte
	Signature []byte
}

// Tombstone asserts "this device recognizes DataID as deleted". A reader must
// check tombstones before treating stale-looking data as current.
type Tombstone struct {
	DataID    string
	DeviceID  string
	Created   time.Time
	Signature []byte
}

func (t *Tombstone) Signed() bool {
	return len(t.Signature) > 0
}

func NewDirectoryInode(uuid string, parent string, ownerFingerprint string, deviceID string) *Inode {
	return &Inode{
		UUID:             uuid,
		Kind:             InodeKindDirectory,
		OwnerFingerprint: ownerFingerprint,
		Version:          0,
		DeviceID:         deviceID,
		ParentUUID:       parent,
		Directory:        &DirectoryPayload{Entries: map[string]DirEntry{}},
	}
}

func NewFileInode(uuid string, parent string, ownerFingerprint string, deviceID string) *Inode {
	return &Inode{
		UUID:             uuid,
		Kind:             InodeKindFile,
		OwnerFingerprint: ownerFingerprint,
		Version:          0,
		DeviceID:         deviceID,
		ParentUUID:       parent,
		File:             &FilePayload{},
	}
}
