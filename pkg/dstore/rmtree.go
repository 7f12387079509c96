package dstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
)

// RmtreeResult reports which inodes got tombstoned, so that a retry after
// partial failure can skip completed work.
type RmtreeResult struct {
	Tombstoned []string // inode UUIDs
}

// Rmtree recursively tombstones every descendant of path, then removes the top
// entry from its parent. There is no atomicity across the inodes it touches:
// partial failure leaves some descendants tombstoned and some not - garbage,
// not corruption - and the caller may retry, with force if needed.
func (s *Store) Rmtree(ctx context.Context, path string, force bool) (*RmtreeResult, error) {
	result := &RmtreeResult{Tombstoned: []string{}}

	target, err := s.Resolve(ctx, path, force)
	if err != nil {
		return result, fmt.Errorf("rmtree %s: %w", path, err)
	}

	if err := s.rmtreeInode(ctx, target, force, result); err != nil {
		return result, fmt.Errorf("rmtree %s: %w", path, err)
	}

	segments := SplitPath(path)

	if len(segments) == 0 {
		// rmtree of the root empties it but keeps the root inode
		target.Directory.Entries = map[string]holvitypes.DirEntry{}
		if _, err := s.saveInode(ctx, target, force); err != nil {
			return result, fmt.Errorf("rmtree %s: %w", path, err)
		}

		return result, nil
	}

	parent, leaf, err := s.ResolveParent(ctx, path, force)
	if err != nil {
		return result, fmt.Errorf("rmtree %s: %w", path, err)
	}

	delete(parent.Directory.Entries, leaf)

	if _, err := s.saveInode(ctx, parent, force); err != nil {
		return result, fmt.Errorf("rmtree %s: %w", path, err)
	}

	return result, nil
}

// post-order: children first, so we never tombstone a directory whose
// descendants we couldn't reach
func (s *Store) rmtreeInode(ctx context.Context, inode *holvitypes.Inode, force bool, result *RmtreeResult) error {
	if inode.IsDir() {
		var allErrors *multierror.Error

		for _, name := range sortedEntryNames(inode.Directory.Entries) {
			entry := inode.Directory.Entries[name]

			child, err := s.loadInode(ctx, entry.UUID, force)
			if err != nil {
				if errors.Is(err, holvitypes.ErrTombstoned) {
					// already deleted by an earlier (partial) run
					continue
				}

				allErrors = multierror.Append(allErrors, fmt.Errorf("%s: %w", name, err))
				continue
			}

			if err := s.rmtreeInode(ctx, child, force, result); err != nil {
				allErrors = multierror.Append(allErrors, fmt.Errorf("%s: %w", name, err))
			}
		}

		if err := allErrors.ErrorOrNil(); err != nil {
			return err
		}
	}

	if inode.UUID == s.ds.RootUUID {
		return nil // the root inode only dies with the whole datastore
	}

	if err := s.removeInodeData(ctx, inode.UUID); err != nil {
		return err
	}

	result.Tombstoned = append(result.Tombstoned, inode.UUID)

	return nil
}

func sortedEntryNames(entries map[string]holvitypes.DirEntry) []string {
	names := []string{}
	for name := range entries {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
