// Package options holds the resolved configuration for a batch run.
package options

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/foldbatch/foldbatch/pkg/check"
)

// DefaultOptions returns the default configuration of the batch runner.
func DefaultOptions() *Options {
	return &Options{
		Python:       "python3",
		Script:       "run_pretrained_openfold.py",
		ConfigPreset: "model_3_ptm",
		GPUs:         "0,1,2,3,4,5,6,7",
		MaxRetries:   1,
	}
}

// Options stores all the configurable options for the batch runner.
type Options struct {
	ConfigFile string `json:"config_file"`

	SeedsRoot  string `json:"seeds_root"`
	OutputRoot string `json:"output_root"`
	FastaDir   string `json:"fasta_dir"`
	MmcifDir   string `json:"mmcif_dir"`
	LogDir     string `json:"log_dir"`

	Python         string `json:"python"`
	Script         string `json:"script"`
	ConfigPreset   string `json:"config_preset"`
	SkipRelaxation bool   `json:"skip_relaxation"`

	GPUs       string   `json:"gpus"`
	Include    []string `json:"include"`
	MaxRetries int      `json:"max_retries"`

	// JobTimeout is a duration string ("45m", "2h"); empty disables the
	// per-job timeout.
	JobTimeout   string `json:"job_timeout"`
	RetryBackoff bool   `json:"retry_backoff"`
	DryRun       bool   `json:"dry_run"`

	// FailureMarkers overrides the built-in list of literal substrings that
	// mark a zero-exit run as failed. Leave empty for the defaults.
	FailureMarkers []string `json:"failure_markers"`
}

// Validate validates the state of the Options struct.
func (o Options) Validate() []error {
	return []error{
		check.NotEmpty(o.SeedsRoot, "seeds root must be provided"),
		check.NotEmpty(o.OutputRoot, "output root must be provided"),
		check.NotEmpty(o.FastaDir, "fasta dir must be provided"),
		check.NotEmpty(o.MmcifDir, "mmcif dir must be provided"),
		check.NotEmpty(o.Script, "prediction script must be provided"),
		check.NotEmpty(o.GPUs, "at least one GPU id must be provided"),
		check.GreaterThanOrEqualTo(o.MaxRetries, 0, "max retries cannot be negative"),
		o.validateTimeout(),
		o.validatePaths(),
	}
}

func (o Options) validateTimeout() error {
	if o.JobTimeout == "" {
		return nil
	}
	if _, err := time.ParseDuration(o.JobTimeout); err != nil {
		return errors.Wrapf(err, "invalid job timeout %q", o.JobTimeout)
	}
	return nil
}

func (o Options) validatePaths() error {
	for _, dir := range []string{o.SeedsRoot, o.FastaDir, o.MmcifDir} {
		if dir == "" {
			continue
		}
		info, err := os.Stat(dir)
		if err != nil {
			return errors.Wrapf(err, "directory %s is not accessible", dir)
		}
		if !info.IsDir() {
			return errors.Errorf("%s is not a directory", dir)
		}
	}
	if o.Script != "" {
		info, err := os.Stat(o.Script)
		if err != nil {
			return errors.Wrapf(err, "prediction script %s is not accessible", o.Script)
		}
		if info.IsDir() {
			return errors.Errorf("prediction script %s is a directory", o.Script)
		}
	}
	return nil
}

// ParsedJobTimeout returns the per-job timeout, zero when disabled. Call
// Validate first; a malformed value parses as zero here.
func (o Options) ParsedJobTimeout() time.Duration {
	if o.JobTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(o.JobTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Printable returns a printable string.
func (o Options) Printable() ([]byte, error) {
	optJSON, err := json.Marshal(o)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert config to JSON")
	}
	return optJSON, nil
}

// Resolve fully resolves the configuration, handling dynamic defaults.
func (o *Options) Resolve() {
	if o.Python == "" {
		o.Python = "python3"
	}
	o.SeedsRoot = absOrKeep(o.SeedsRoot)
	o.OutputRoot = absOrKeep(o.OutputRoot)
	o.FastaDir = absOrKeep(o.FastaDir)
	o.MmcifDir = absOrKeep(o.MmcifDir)
	o.Script = absOrKeep(o.Script)
	o.LogDir = absOrKeep(o.LogDir)
}

func absOrKeep(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
