package blobdriver

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/function61/gokit/atomicfilewrite"
	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/logex"
)

func NewLocalFs(uuid string, path string, logger *log.Logger) *localFs {
	return &localFs{
		uuid: uuid,
		path: path,
		log:  logex.Levels(logex.NonNil(logger)),
	}
}

type localFs struct {
	uuid string
	path string
	log  *logex.Leveled
}

func (l *localFs) Put(ctx context.Context, key string, content io.Reader) error {
	filename, err := l.keyToPath(key)
	if err != nil {
		return err
	}

	// does not error if already exists
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	return atomicfilewrite.Write(filename, func(writer io.Writer) error {
		_, err := io.Copy(writer, content)
		return err
	})
}

func (l *localFs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	filename, err := l.keyToPath(key)
	if err != nil {
		return nil, err
	}

	return os.Open(filename)
}

func (l *localFs) Delete(ctx context.Context, key string) error {
	filename, err := l.keyToPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func (l *localFs) Mountable(ctx context.Context) error {
	// to ensure that we mounted the correct directory, there must be a flag file
	// in the root. without this check we could write into the wrong place.
	flagFilename := "holvi-" + l.uuid + ".json"

	exists, err := fileexists.Exists(filepath.Join(l.path, flagFilename))
	if err != nil {
		return err // error checking file existence
	}

	if !exists {
		return fmt.Errorf("flag file not found: %s", flagFilename)
	}

	return nil
}

func (l *localFs) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}

	err := filepath.WalkDir(l.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		if !strings.HasSuffix(path, ".blob") {
			return nil // flag file etc.
		}

		rel, err := filepath.Rel(l.path, path)
		if err != nil {
			return err
		}

		key := strings.TrimSuffix(filepath.ToSlash(rel), ".blob")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return keys, nil
}

func (l *localFs) keyToPath(key string) (string, error) {
	// keys are slash-delimited namespace paths; refuse anything that could
	// escape the driver root
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("localfs: invalid key: %s", key)
		}
	}

	return filepath.Join(l.path, filepath.FromSlash(key)+".blob"), nil
}
