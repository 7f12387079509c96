package blobdriver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"sort"
	"strings"
	"sync"
)

var errInjectedFault = errors.New("injected driver fault")

// in-memory driver. used by tests, also handy for simulating partial driver
// failures (FailPuts/FailGets).
func NewInMemory() *InMemory {
	return &InMemory{
		blobs: map[string][]byte{},
	}
}

type InMemory struct {
	mu    sync.Mutex
	blobs map[string][]byte

	FailPuts bool
	FailGets bool
}

func (i *InMemory) Put(ctx context.Context, key string, content io.Reader) error {
	if i.FailPuts {
		return errInjectedFault
	}

	buf, err := ioutil.ReadAll(content)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.blobs[key] = buf
	return nil
}

func (i *InMemory) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if i.FailGets {
		return nil, errInjectedFault
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	buf, found := i.blobs[key]
	if !found {
		return nil, os.ErrNotExist
	}

	return ioutil.NopCloser(bytes.NewReader(buf)), nil
}

func (i *InMemory) Delete(ctx context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.blobs, key)
	return nil
}

func (i *InMemory) Mountable(ctx context.Context) error {
	return nil
}

func (i *InMemory) List(ctx context.Context, prefix string) ([]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	keys := []string{}
	for key := range i.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys, nil
}

// test helper: raw access for asserting what's physically stored
func (i *InMemory) Poke(key string, content []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if content == nil {
		delete(i.blobs, key)
	} else {
		i.blobs[key] = content
	}
}
