package blobdriver

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestKeyToPath(t *testing.T) {
	driver := NewLocalFs("APvMjudT4IQ", "/tmp", nil)

	path, err := driver.keyToPath("d7a8fbb3/mutable/dev1/1f0e98a1")
	assert.Ok(t, err)
	assert.EqualString(t, filepath.ToSlash(path), "/tmp/d7a8fbb3/mutable/dev1/1f0e98a1.blob")

	_, err = driver.keyToPath("d7a8fbb3/../../etc/passwd")
	assert.Assert(t, err != nil)

	_, err = driver.keyToPath("d7a8fbb3//x")
	assert.Assert(t, err != nil)
}

func TestLocalFsRoundTrip(t *testing.T) {
	ctx := context.Background()

	driver := NewLocalFs("test", t.TempDir(), nil)

	assert.Ok(t, driver.Put(ctx, "ns/mutable/dev1/aaaa", bytes.NewBufferString("hello")))
	assert.Ok(t, driver.Put(ctx, "ns/mutable/dev1/bbbb", bytes.NewBufferString("world")))

	content, err := driver.Get(ctx, "ns/mutable/dev1/aaaa")
	assert.Ok(t, err)
	buf, err := ioutil.ReadAll(content)
	assert.Ok(t, err)
	assert.Ok(t, content.Close())
	assert.EqualString(t, string(buf), "hello")

	_, err = driver.Get(ctx, "ns/mutable/dev1/missing")
	assert.Assert(t, os.IsNotExist(err))

	keys, err := driver.List(ctx, "ns/")
	assert.Ok(t, err)
	assert.Assert(t, len(keys) == 2)
	assert.EqualString(t, keys[0], "ns/mutable/dev1/aaaa")

	assert.Ok(t, driver.Delete(ctx, "ns/mutable/dev1/aaaa"))
	// delete of a missing key is not an error
	assert.Ok(t, driver.Delete(ctx, "ns/mutable/dev1/aaaa"))

	_, err = driver.Get(ctx, "ns/mutable/dev1/aaaa")
	assert.Assert(t, os.IsNotExist(err))
}
