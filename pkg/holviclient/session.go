package holviclient

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/function61/gokit/logex"
	"github.com/holvi-fs/holvi/pkg/blobdriver"
	"github.com/holvi-fs/holvi/pkg/dstore"
	"github.com/holvi-fs/holvi/pkg/holvitypes"
	"github.com/holvi-fs/holvi/pkg/registry"
	"github.com/holvi-fs/holvi/pkg/signing"
)

// everything a CLI command needs to talk to the configured datastore
type session struct {
	conf    *ClientConfig
	custody *signing.LocalCustody
	drivers []blobdriver.Driver
	reg     *registry.Registry
	logger  *log.Logger
}

func newSession() (*session, error) {
	conf, err := ReadConfig()
	if err != nil {
		return nil, err
	}

	logger := logex.StandardLogger()

	custody, err := readCustody(conf)
	if err != nil {
		return nil, err
	}

	drivers, _, err := makeDrivers(conf, logger)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Open(conf.RegistryDbLocation)
	if err != nil {
		return nil, err
	}

	return &session{
		conf:    conf,
		custody: custody,
		drivers: drivers,
		reg:     reg,
		logger:  logger,
	}, nil
}

func (s *session) Close() error {
	return s.reg.Close()
}

func (s *session) datastoreID() (string, error) {
	pubKey, err := s.custody.PublicKey(signing.KeyRoleOwner)
	if err != nil {
		return "", err
	}

	return signing.DeriveDatastoreID(pubKey)
}

// store opens the datastore owned by the configured key
func (s *session) store() (*dstore.Store, error) {
	id, err := s.datastoreID()
	if err != nil {
		return nil, err
	}

	ds, err := s.reg.GetDatastore(id)
	if err != nil {
		return nil, err
	}

	return dstore.New(dstore.Config{
		Datastore:     ds,
		Drivers:       s.drivers,
		DeviceIDs:     s.deviceIDs(id),
		LocalDeviceID: s.conf.LocalDeviceID,
		Custody:       s.custody,
		VersionLog:    s.reg,
		Registry:      s.reg,
		Logger:        s.logger,
	})
}

func (s *session) deviceIDs(datastoreID string) []string {
	deviceIDs, err := s.reg.ListDeviceIDs(datastoreID)
	if err == nil && len(deviceIDs) > 0 {
		return deviceIDs
	}

	if len(s.conf.DeviceIDs) > 0 {
		return s.conf.DeviceIDs
	}

	return []string{s.conf.LocalDeviceID}
}

func readCustody(conf *ClientConfig) (*signing.LocalCustody, error) {
	ownerKeyPem, err := ioutil.ReadFile(conf.OwnerKeyLocation)
	if err != nil {
		return nil, fmt.Errorf("owner key: %v", err)
	}

	custody, err := signing.NewLocalCustody(ownerKeyPem)
	if err != nil {
		return nil, err
	}

	if conf.DeviceKeyLocation != "" {
		deviceKeyPem, err := ioutil.ReadFile(conf.DeviceKeyLocation)
		if err != nil {
			return nil, fmt.Errorf("device key: %v", err)
		}

		if err := custody.RegisterDeviceKey(deviceKeyPem); err != nil {
			return nil, err
		}
	}

	return custody, nil
}

// user-visible failures always carry the errno so scripts can react POSIX-style
func exitIfOpError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "error: %v (errno %d)\n", err, holvitypes.Errno(err))
	os.Exit(1)
}
