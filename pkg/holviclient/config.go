package holviclient

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/jsonfile"
	"github.com/function61/gokit/osutil"
	"github.com/holvi-fs/holvi/pkg/blobdriver"
	"github.com/holvi-fs/holvi/pkg/holviutils"
	"github.com/spf13/cobra"
)

const (
	configFilename = "holvi-config.json"
)

type DriverKind string

const (
	DriverKindLocalFs DriverKind = "local-fs"
	DriverKindS3      DriverKind = "s3"
)

type DriverConfig struct {
	Name string     `json:"name"`
	Kind DriverKind `json:"kind"`
	// local-fs: path to the storage directory
	// s3: bucket:region:accessKeyId:secret
	Opts string `json:"opts"`
}

type ClientConfig struct {
	RegistryDbLocation string         `json:"registry_db_location"`
	OwnerKeyLocation   string         `json:"owner_key_location"`
	DeviceKeyLocation  string         `json:"device_key_location,omitempty"`
	LocalDeviceID      string         `json:"local_device_id"`
	DeviceIDs          []string       `json:"device_ids"`
	Drivers            []DriverConfig `json:"drivers"`
}

func ReadConfig() (*ClientConfig, error) {
	confPath, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}

	conf := &ClientConfig{}
	if err := jsonfile.Read(confPath, conf, true); err != nil {
		return nil, err
	}

	return conf, nil
}

func WriteConfig(conf *ClientConfig) error {
	confPath, err := ConfigFilePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(confPath), 0700); err != nil {
		return err
	}

	return jsonfile.Write(confPath, conf)
}

func ConfigFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".holvi", configFilename), nil
}

func configInitEntrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "config-init [ownerKeyPath] [driverPath]",
		Short: "Initialize configuration with a local-fs driver",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ownerKeyPath := args[0]
			driverPath := args[1]

			confPath, err := ConfigFilePath()
			osutil.ExitIfError(err)

			exists, err := fileexists.Exists(confPath)
			osutil.ExitIfError(err)

			if exists {
				osutil.ExitIfError(errors.New("config file already exists"))
			}

			conf := &ClientConfig{
				RegistryDbLocation: filepath.Join(filepath.Dir(confPath), "holvi.db"),
				OwnerKeyLocation:   ownerKeyPath,
				LocalDeviceID:      holviutils.NewDeviceID(),
				Drivers: []DriverConfig{
					{
						Name: holviutils.NewDriverID(),
						Kind: DriverKindLocalFs,
						Opts: driverPath,
					},
				},
			}
			conf.DeviceIDs = []string{conf.LocalDeviceID}

			// flag file marks the directory as belonging to this driver, so that a
			// bad mount cannot silently receive writes
			osutil.ExitIfError(os.MkdirAll(driverPath, 0755))
			osutil.ExitIfError(jsonfile.Write(
				filepath.Join(driverPath, "holvi-"+conf.Drivers[0].Name+".json"),
				&struct {
					Driver string `json:"driver"`
				}{Driver: conf.Drivers[0].Name}))

			osutil.ExitIfError(WriteConfig(conf))
		},
	}
}

func configPrintEntrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "config-print",
		Short: "Prints path to config file & its contents",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			confPath, err := ConfigFilePath()
			osutil.ExitIfError(err)

			fmt.Printf("file: %s\n", confPath)

			exists, err := fileexists.Exists(confPath)
			osutil.ExitIfError(err)

			if !exists {
				fmt.Printf(".. does not exist. To configure, run:\n    $ %s config-init\n", os.Args[0])
				return
			}

			file, err := os.Open(confPath)
			osutil.ExitIfError(err)
			defer file.Close()

			_, err = io.Copy(os.Stdout, file)
			osutil.ExitIfError(err)
		},
	}
}

func makeDrivers(conf *ClientConfig, logger *log.Logger) ([]blobdriver.Driver, []string, error) {
	drivers := []blobdriver.Driver{}
	names := []string{}

	for _, driverConf := range conf.Drivers {
		driver, err := makeDriver(driverConf, logger)
		if err != nil {
			return nil, nil, err
		}

		drivers = append(drivers, driver)
		names = append(names, driverConf.Name)
	}

	if len(drivers) == 0 {
		return nil, nil, fmt.Errorf("no storage drivers configured")
	}

	return drivers, names, nil
}

func makeDriver(conf DriverConfig, logger *log.Logger) (blobdriver.Driver, error) {
	switch conf.Kind {
	case DriverKindLocalFs:
		return blobdriver.NewLocalFs(conf.Name, conf.Opts, logger), nil
	case DriverKindS3:
		return blobdriver.NewS3(conf.Opts, logger)
	default:
		return nil, fmt.Errorf("unsupported driver kind: %s", conf.Kind)
	}
}
