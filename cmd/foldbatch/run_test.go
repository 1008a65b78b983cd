package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigPrecedenceFlagOverConfigOverDefault(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Set("gpus", "9"))

	opts, err := getRunConfig()
	require.NoError(t, err)
	require.Equal(t, "9", opts.GPUs)

	opts, err = mergeConfigIntoViper([]byte("gpus: \"4,5\"\nmax_retries: 7\n"))
	require.NoError(t, err)
	require.Equal(t, "9", opts.GPUs, "an explicitly set flag beats the config file")
	require.Equal(t, 7, opts.MaxRetries, "the config file beats the default")
	require.Equal(t, "model_3_ptm", opts.ConfigPreset, "untouched values keep their default")
}

func TestConfigFileValuesLand(t *testing.T) {
	newRunCmd()

	opts, err := mergeConfigIntoViper([]byte(`
seeds_root: /data/seeds
output_root: /data/out
skip_relaxation: true
failure_markers:
  - "CUSTOM BAD THING"
`))
	require.NoError(t, err)
	require.Equal(t, "/data/seeds", opts.SeedsRoot)
	require.Equal(t, "/data/out", opts.OutputRoot)
	require.True(t, opts.SkipRelaxation)
	require.Equal(t, []string{"CUSTOM BAD THING"}, opts.FailureMarkers)
}

func TestConfigRejectsUnknownKeys(t *testing.T) {
	newRunCmd()

	_, err := mergeConfigIntoViper([]byte("max_retires: 3\n"))
	require.Error(t, err)
}

func TestReadConfigFileMissing(t *testing.T) {
	bs, err := readConfigFile("")
	require.NoError(t, err)
	require.Nil(t, bs)

	_, err = readConfigFile("/no/such/config.yaml")
	require.Error(t, err)
}
