package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlis/folio/pkg/logger"
)

func TestLoadThresholds_MissingFileUsesDefaults(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})

	thresholds, err := LoadThresholds(filepath.Join(t.TempDir(), "nope.toml"), log)
	require.NoError(t, err)
	assert.Equal(t, DefaultThresholds(), thresholds)

	thresholds, err = LoadThresholds("", log)
	require.NoError(t, err)
	assert.Equal(t, DefaultThresholds(), thresholds)
}

func TestLoadThresholds_FileOverridesDefaults(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	path := filepath.Join(t.TempDir(), "thresholds.toml")

	content := `
[risk]
medium_dispersion = 12.0
high_dispersion = 24.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	thresholds, err := LoadThresholds(path, log)
	require.NoError(t, err)

	assert.Equal(t, 12.0, thresholds.Risk.MediumDispersion)
	assert.Equal(t, 24.0, thresholds.Risk.HighDispersion)
	// Untouched sections keep their defaults
	assert.Equal(t, DefaultThresholds().Concentration, thresholds.Concentration)
}

func TestLoadThresholds_MalformedFileFails(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	path := filepath.Join(t.TempDir(), "thresholds.toml")

	require.NoError(t, os.WriteFile(path, []byte("[risk\nnot toml"), 0o644))

	_, err := LoadThresholds(path, log)
	assert.Error(t, err)
}

func TestLoadThresholds_InconsistentFileFails(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	path := filepath.Join(t.TempDir(), "thresholds.toml")

	content := `
[risk]
medium_dispersion = 20.0
high_dispersion = 10.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadThresholds(path, log)
	assert.Error(t, err)
}
