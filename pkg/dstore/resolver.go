package dstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/holvi-fs/holvi/pkg/holvitypes"
)

// SplitPath splits a slash-delimited path into its segments, discarding empty
// ones, so "/", "" and "//" all mean the root.
func SplitPath(path string) []string {
	segments := []string{}

	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	return segments
}

// Resolve walks path from the datastore root to the target inode, validating
// that every intermediate segment is a directory.
func (s *Store) Resolve(ctx context.Context, path string, force bool) (*holvitypes.Inode, error) {
	segments := SplitPath(path)

	if err := s.checkPathDepth(segments); err != nil {
		return nil, err
	}

	return s.walk(ctx, segments, force)
}

// ResolveParent stops one segment short, for operations that insert or remove
// a leaf entry. The root has no parent.
func (s *Store) ResolveParent(ctx context.Context, path string, force bool) (*holvitypes.Inode, string, error) {
	segments := SplitPath(path)

	if len(segments) == 0 {
		return nil, "", fmt.Errorf("%w: root has no parent", holvitypes.ErrInvalidArgument)
	}

	if err := s.checkPathDepth(segments); err != nil {
		return nil, "", err
	}

	parent, err := s.walk(ctx, segments[:len(segments)-1], force)
	if err != nil {
		return nil, "", err
	}

	if !parent.IsDir() {
		return nil, "", fmt.Errorf("%s: %w", path, holvitypes.ErrNotADirectory)
	}

	return parent, segments[len(segments)-1], nil
}

func (s *Store) walk(ctx context.Context, segments []string, force bool) (*holvitypes.Inode, error) {
	current, err := s.loadInode(ctx, s.ds.RootUUID, force)
	if err != nil {
		return nil, err
	}

	for i, segment := range segments {
		if !current.IsDir() {
			return nil, fmt.Errorf("%s: %w", strings.Join(segments[:i], "/"), holvitypes.ErrNotADirectory)
		}

		entry, found := current.Directory.Entries[segment]
		if !found {
			return nil, fmt.Errorf("%s: %w", strings.Join(segments[:i+1], "/"), holvitypes.ErrNotFound)
		}

		current, err = s.loadInode(ctx, entry.UUID, force)
		if err != nil {
			return nil, err
		}
	}

	return current, nil
}

// collections are flat: only a single path segment directly under root
func (s *Store) checkPathDepth(segments []string) error {
	if s.ds.Kind == holvitypes.DatastoreKindCollection && len(segments) > 1 {
		return fmt.Errorf("%w: collection paths are single-level", holvitypes.ErrInvalidArgument)
	}

	return nil
}
