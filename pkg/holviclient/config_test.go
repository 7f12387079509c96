package holviclient

import (
	"testing"

	"github.com/function61/gokit/assert"
)

func TestMakeDriver(t *testing.T) {
	driver, err := makeDriver(DriverConfig{
		Name: "d1",
		Kind: DriverKindLocalFs,
		Opts: t.TempDir(),
	}, nil)
	assert.Ok(t, err)
	assert.Assert(t, driver != nil)

	_, err = makeDriver(DriverConfig{Name: "d2", Kind: "carrier-pigeon"}, nil)
	assert.Assert(t, err != nil)

	// s3 options string is validated up front
	_, err = makeDriver(DriverConfig{Name: "d3", Kind: DriverKindS3, Opts: "not-valid"}, nil)
	assert.Assert(t, err != nil)
}

func TestMakeDriversRequiresAtLeastOne(t *testing.T) {
	_, _, err := makeDrivers(&ClientConfig{}, nil)
	assert.Assert(t, err != nil)
}
