// Interface for writing storage driver adapters to Holvi
package blobdriver

import (
	"context"
	"io"
)

type Driver interface {
	// write must be atomic and overwrite-by-key. Get() must not return anything
	// before the write has completed successfully.
	Put(ctx context.Context, key string, content io.Reader) error

	// if key is not found, error must report os.IsNotExist(err) == true
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// best-effort; a driver is allowed to be a no-op on delete
	Delete(ctx context.Context, key string) error

	Mountable(ctx context.Context) error
}

// Lister is optionally implemented by drivers that can enumerate their keys.
// Datastore deletion uses it to sweep everything under a namespace prefix.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}
