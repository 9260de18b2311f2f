package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanvoice/review-engine/internal/config"
)

func TestInitStore_SQLite(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "review.db"),
	}}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Migrate(context.Background()))
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "oracle"}}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestLoadConfidenceConfig_Unset(t *testing.T) {
	cfg = &config.Config{}

	c, err := loadConfidenceConfig()
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestLoadConfidenceConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	yaml := `
confidence:
  weights:
    numer_faktury: 0.30
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg = &config.Config{Confidence: config.ConfidenceConfig{WeightsFile: path}}

	c, err := loadConfidenceConfig()
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.InDelta(t, 0.30, c.Weights["numer_faktury"], 0.001)
}

func TestLoadConfidenceConfig_MissingFile(t *testing.T) {
	cfg = &config.Config{Confidence: config.ConfidenceConfig{WeightsFile: "/nope/weights.yaml"}}

	_, err := loadConfidenceConfig()
	assert.Error(t, err)
}
