package dstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
	"github.com/holvi-fs/holvi/pkg/mutable"
)

// mirrors how a full client session behaves, start to finish
func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, holvitypes.DatastoreKindTree)

	directories := []string{
		"/top1",
		"/top1/mid",
		"/top1/mid/deep",
		"/top2",
	}

	for _, dir := range directories {
		assert.Ok(t, env.store.Mkdir(ctx, dir, false))
	}

	// re-running the same mkdirs must all fail EEXIST
	for _, dir := range directories {
		err := env.store.Mkdir(ctx, dir, false)
		assert.Assert(t, errors.Is(err, holvitypes.ErrAlreadyExists))
	}

	entries, err := env.store.ListDir(ctx, "/", false)
	assert.Ok(t, err)
	assert.EqualString(t, dumpNames(entries), "top1,top2")

	files := []string{
		"/readme.txt",
		"/top1/a.txt",
		"/top1/mid/b.txt",
		"/top1/mid/deep/c.txt",
		"/top2/d.txt",
	}

	for i, file := range files {
		_, err := env.store.PutFile(ctx, file, []byte(fmt.Sprintf("content %d", i)), true, false)
		assert.Ok(t, err)
	}

	entries, err = env.store.ListDir(ctx, "/", false)
	assert.Ok(t, err)
	assert.EqualString(t, dumpNames(entries), "readme.txt,top1,top2")

	// overwrite all five, then verify reads reflect the update
	for i, file := range files {
		_, err := env.store.PutFile(ctx, file, []byte(fmt.Sprintf("updated %d", i)), false, false)
		assert.Ok(t, err)
	}

	for i, file := range files {
		content, err := env.store.GetFile(ctx, file, false)
		assert.Ok(t, err)
		assert.EqualString(t, string(content), fmt.Sprintf("updated %d", i))
	}

	for _, file := range files {
		assert.Ok(t, env.store.DeleteFile(ctx, file, false))
	}

	for _, file := range files {
		_, err := env.store.GetFile(ctx, file, false)
		assert.Assert(t, errors.Is(err, holvitypes.ErrNotFound))

		_, err = env.store.Stat(ctx, file, false)
		assert.Assert(t, errors.Is(err, holvitypes.ErrNotFound))
	}

	// bottom-up
	assert.Ok(t, env.store.Rmdir(ctx, "/top1/mid/deep", false))
	assert.Ok(t, env.store.Rmdir(ctx, "/top1/mid", false))
	assert.Ok(t, env.store.Rmdir(ctx, "/top1", false))
	assert.Ok(t, env.store.Rmdir(ctx, "/top2", false))

	entries, err = env.store.ListDir(ctx, "/", false)
	assert.Ok(t, err)
	assert.Assert(t, len(entries) == 0)

	assert.Ok(t, env.store.DeleteDatastore(ctx, false))

	// nothing of the datastore remains on the driver
	keys, err := env.driver.List(ctx, mutable.NamespacePrefix(env.store.ds.ID))
	assert.Ok(t, err)
	assert.Assert(t, len(keys) == 0)
}

func dumpNames(entries map[string]holvitypes.DirEntry) string {
	names := []string{}
	for name := range entries {
		names = append(names, name)
	}

	sort.Strings(names)

	return strings.Join(names, ",")
}
