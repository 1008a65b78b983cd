package options

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foldbatch/foldbatch/pkg/check"
)

func validOptions(t *testing.T) *Options {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"seeds", "fasta", "mmcif"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, dir), 0o755))
	}
	script := filepath.Join(root, "run_pretrained_openfold.py")
	require.NoError(t, os.WriteFile(script, []byte("print('hi')\n"), 0o644))

	opts := DefaultOptions()
	opts.SeedsRoot = filepath.Join(root, "seeds")
	opts.OutputRoot = filepath.Join(root, "out")
	opts.FastaDir = filepath.Join(root, "fasta")
	opts.MmcifDir = filepath.Join(root, "mmcif")
	opts.Script = script
	return opts
}

func TestValidateAcceptsDefaults(t *testing.T) {
	opts := validOptions(t)
	require.NoError(t, check.Validate(*opts))
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"missing seeds root", func(o *Options) { o.SeedsRoot = "" }},
		{"missing output root", func(o *Options) { o.OutputRoot = "" }},
		{"missing gpus", func(o *Options) { o.GPUs = "" }},
		{"negative retries", func(o *Options) { o.MaxRetries = -1 }},
		{"bad timeout", func(o *Options) { o.JobTimeout = "banana" }},
		{"seeds root not a dir", func(o *Options) { o.SeedsRoot = o.Script }},
		{"script does not exist", func(o *Options) { o.Script = o.Script + ".gone" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions(t)
			tt.mutate(opts)
			require.Error(t, check.Validate(*opts))
		})
	}
}

func TestResolve(t *testing.T) {
	opts := DefaultOptions()
	opts.Python = ""
	opts.SeedsRoot = "seeds"
	opts.Resolve()

	require.Equal(t, "python3", opts.Python)
	require.True(t, filepath.IsAbs(opts.SeedsRoot))
	require.Empty(t, opts.LogDir, "unset paths stay unset")
}

func TestParsedJobTimeout(t *testing.T) {
	opts := DefaultOptions()
	require.Zero(t, opts.ParsedJobTimeout())

	opts.JobTimeout = "45m"
	require.Equal(t, 45*time.Minute, opts.ParsedJobTimeout())
}

func TestPrintable(t *testing.T) {
	opts := validOptions(t)
	bs, err := opts.Printable()
	require.NoError(t, err)
	require.Contains(t, string(bs), `"max_retries":1`)
}
