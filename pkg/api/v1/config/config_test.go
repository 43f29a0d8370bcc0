package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadMeters(t *testing.T) {
	d := `
meters:
  - number: "123456"
    subscriptionId: sub-1
    name: Home
  - number: "789012"
`
	path := filepath.Join(t.TempDir(), "meters.yml")
	assert.NoError(t, os.WriteFile(path, []byte(d), 0644))

	meters, err := LoadMeters(path)
	assert.NoError(t, err)
	assert.Len(t, meters, 2)
	assert.Equal(t, "123456", meters[0].Number)
	assert.Equal(t, "sub-1", meters[0].SubscriptionID)
	assert.Equal(t, "Home", meters[0].Name)
	assert.Equal(t, "789012", meters[1].Number)
	assert.Equal(t, "", meters[1].SubscriptionID)
}

func TestLoadMetersMissingNumber(t *testing.T) {
	d := `
meters:
  - subscriptionId: sub-1
`
	path := filepath.Join(t.TempDir(), "meters.yml")
	assert.NoError(t, os.WriteFile(path, []byte(d), 0644))

	_, err := LoadMeters(path)
	assert.ErrorContains(t, err, "number is required")
}

func TestLoadMetersEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meters.yml")
	assert.NoError(t, os.WriteFile(path, []byte(""), 0644))

	_, err := LoadMeters(path)
	assert.ErrorContains(t, err, "no meters")
}

func TestLoadMetersMissingFile(t *testing.T) {
	_, err := LoadMeters(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestMetersFromFlags(t *testing.T) {
	c := &CliConfig{MeterNumber: "123456", SubscriptionID: "sub-1"}

	meters, err := c.Meters()
	assert.NoError(t, err)
	assert.Len(t, meters, 1)
	assert.Equal(t, "123456", meters[0].Number)
	assert.Equal(t, "sub-1", meters[0].SubscriptionID)
}

func TestMetersUnconfigured(t *testing.T) {
	c := &CliConfig{}

	meters, err := c.Meters()
	assert.NoError(t, err)
	assert.Len(t, meters, 0)
}

func TestMetersFileWins(t *testing.T) {
	d := `
meters:
  - number: "999"
`
	path := filepath.Join(t.TempDir(), "meters.yml")
	assert.NoError(t, os.WriteFile(path, []byte(d), 0644))

	c := &CliConfig{MeterNumber: "123456", MetersFile: path}

	meters, err := c.Meters()
	assert.NoError(t, err)
	assert.Len(t, meters, 1)
	assert.Equal(t, "999", meters[0].Number)
}
