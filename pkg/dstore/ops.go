package dstore

import (
	"context"
	"fmt"

	"github.com/holvi-fs/holvi/pkg/holvitypes"
	sha256 "github.com/minio/sha256-simd"
)

// All mutating operations follow the same two-phase pattern: resolve the
// target location, then save the mutated parent directory inode. The parent
// save is the durability point - a crash between child save and parent save
// leaves an orphaned but harmless inode.

func (s *Store) Mkdir(ctx context.Context, path string, force bool) error {
	if s.ds.Kind == holvitypes.DatastoreKindCollection {
		return fmt.Errorf("mkdir %s: %w: collections are flat", path, holvitypes.ErrInvalidArgument)
	}

	parent, leaf, err := s.ResolveParent(ctx, path, force)
	if err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}

	if _, exists := parent.Directory.Entries[leaf]; exists {
		return fmt.Errorf("mkdir %s: %w", path, holvitypes.ErrAlreadyExists)
	}

	child := s.newDirectoryInode(parent.UUID)

	if _, err := s.saveInode(ctx, child, force); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}

	parent.Directory.Entries[leaf] = holvitypes.DirEntry{UUID: child.UUID, Kind: holvitypes.InodeKindDirectory}

	if _, err := s.saveInode(ctx, parent, force); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}

	return nil
}

func (s *Store) Rmdir(ctx context.Context, path string, force bool) error {
	parent, leaf, err := s.ResolveParent(ctx, path, force)
	if err != nil {
		return fmt.Errorf("rmdir %s: %w", path, err)
	}

	entry, found := parent.Directory.Entries[leaf]
	if !found {
		return fmt.Errorf("rmdir %s: %w", path, holvitypes.ErrNotFound)
	}

	child, err := s.loadInode(ctx, entry.UUID, force)
	if err != nil {
		return fmt.Errorf("rmdir %s: %w", path, err)
	}

	if !child.IsDir() {
		return fmt.Errorf("rmdir %s: %w", path, holvitypes.ErrNotADirectory)
	}

	if len(child.Directory.Entries) > 0 {
		return fmt.Errorf("rmdir %s: %w", path, holvitypes.ErrNotEmpty)
	}

	if err := s.removeInodeData(ctx, child.UUID); err != nil {
		return fmt.Errorf("rmdir %s: %w", path, err)
	}

	delete(parent.Directory.Entries, leaf)

	if _, err := s.saveInode(ctx, parent, force); err != nil {
		return fmt.Errorf("rmdir %s: %w", path, err)
	}

	return nil
}

// PutFile creates or overwrites a file. With create=true an existing leaf is
// an error.
func (s *Store) PutFile(ctx context.Context, path string, content []byte, create bool, force bool) (*holvitypes.Inode, error) {
	parent, leaf, err := s.ResolveParent(ctx, path, force)
	if err != nil {
		return nil, fmt.Errorf("putfile %s: %w", path, err)
	}

	sum := sha256.Sum256(content)

	if entry, exists := parent.Directory.Entries[leaf]; exists {
		if create {
			return nil, fmt.Errorf("putfile %s: %w", path, holvitypes.ErrAlreadyExists)
		}

		child, err := s.loadInode(ctx, entry.UUID, force)
		if err != nil {
			return nil, fmt.Errorf("putfile %s: %w", path, err)
		}

		if child.IsDir() {
			return nil, fmt.Errorf("putfile %s: %w", path, holvitypes.ErrIsADirectory)
		}

		child.File = &holvitypes.FilePayload{
			Content: content,
			Sha256:  sum[:],
			Size:    int64(len(content)),
		}

		// overwrite doesn't touch the parent, so the file save is the
		// durability point here
		if _, err := s.saveInode(ctx, child, force); err != nil {
			return nil, fmt.Errorf("putfile %s: %w", path, err)
		}

		return child, nil
	}

	child := s.newFileInode(parent.UUID)
	child.File = &holvitypes.FilePayload{
		Content: content,
		Sha256:  sum[:],
		Size:    int64(len(content)),
	}

	if _, err := s.saveInode(ctx, child, force); err != nil {
		return nil, fmt.Errorf("putfile %s: %w", path, err)
	}

	parent.Directory.Entries[leaf] = holvitypes.DirEntry{UUID: child.UUID, Kind: holvitypes.InodeKindFile}

	if _, err := s.saveInode(ctx, parent, force); err != nil {
		return nil, fmt.Errorf("putfile %s: %w", path, err)
	}

	return child, nil
}

func (s *Store) GetFile(ctx context.Context, path string, force bool) ([]byte, error) {
	inode, err := s.Resolve(ctx, path, force)
	if err != nil {
		return nil, fmt.Errorf("getfile %s: %w", path, err)
	}

	if inode.IsDir() {
		return nil, fmt.Errorf("getfile %s: %w", path, holvitypes.ErrIsADirectory)
	}

	return inode.File.Content, nil
}

func (s *Store) DeleteFile(ctx context.Context, path string, force bool) error {
	parent, leaf, err := s.ResolveParent(ctx, path, force)
	if err != nil {
		return fmt.Errorf("deletefile %s: %w", path, err)
	}

	entry, found := parent.Directory.Entries[leaf]
	if !found {
		return fmt.Errorf("deletefile %s: %w", path, holvitypes.ErrNotFound)
	}

	if entry.Kind == holvitypes.InodeKindDirectory {
		return fmt.Errorf("deletefile %s: %w", path, holvitypes.ErrIsADirectory)
	}

	if err := s.removeInodeData(ctx, entry.UUID); err != nil {
		return fmt.Errorf("deletefile %s: %w", path, err)
	}

	delete(parent.Directory.Entries, leaf)

	if _, err := s.saveInode(ctx, parent, force); err != nil {
		return fmt.Errorf("deletefile %s: %w", path, err)
	}

	return nil
}

func (s *Store) ListDir(ctx context.Context, path string, force bool) (map[string]holvitypes.DirEntry, error) {
	inode, err := s.Resolve(ctx, path, force)
	if err != nil {
		return nil, fmt.Errorf("listdir %s: %w", path, err)
	}

	if !inode.IsDir() {
		return nil, fmt.Errorf("listdir %s: %w", path, holvitypes.ErrNotADirectory)
	}

	// clone, so the caller can't mutate our view
	entries := map[string]holvitypes.DirEntry{}
	for name, entry := range inode.Directory.Entries {
		entries[name] = entry
	}

	return entries, nil
}

// Stat returns inode metadata without file content.
func (s *Store) Stat(ctx context.Context, path string, force bool) (*holvitypes.Inode, error) {
	inode, err := s.Resolve(ctx, path, force)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	return withoutContent(inode), nil
}

// GetInode fetches an inode directly by UUID, bypassing path resolution.
// withPayload=false strips file content, like Stat.
func (s *Store) GetInode(ctx context.Context, uuid string, withPayload bool, force bool) (*holvitypes.Inode, error) {
	inode, err := s.loadInode(ctx, uuid, force)
	if err != nil {
		return nil, fmt.Errorf("getinode %s: %w", uuid, err)
	}

	if !withPayload {
		return withoutContent(inode), nil
	}

	return inode, nil
}

func withoutContent(inode *holvitypes.Inode) *holvitypes.Inode {
	if inode.Kind != holvitypes.InodeKindFile {
		return inode
	}

	stripped := *inode
	stripped.File = &holvitypes.FilePayload{
		Sha256: inode.File.Sha256,
		Size:   inode.File.Size,
	}

	return &stripped
}
