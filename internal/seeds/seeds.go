// Package seeds turns a directory of seed folders into the fully resolved
// job list the scheduler consumes: one prediction command per seed, output
// and log locations included.
package seeds

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/foldbatch/foldbatch/internal/run"
)

// Spec describes how to build per-seed prediction commands. All paths are
// absolute by the time a Spec reaches this package.
type Spec struct {
	SeedsRoot      string
	OutputRoot     string
	FastaDir       string
	MmcifDir       string
	Script         string
	Python         string
	ConfigPreset   string
	SkipRelaxation bool
	LogDir         string
	Include        []string
}

// Discover lists the seed directory names under root, sorted by name. When
// include is non-empty only the named seeds are kept.
func Discover(root string, include []string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "reading seeds root %s", root)
	}

	var filter map[string]bool
	if len(include) > 0 {
		filter = make(map[string]bool, len(include))
		for _, name := range include {
			filter[name] = true
		}
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if filter != nil && !filter[entry.Name()] {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// BuildJobs constructs one job per seed, creating each seed's output
// directory along the way. Problems preparing individual seeds are collected
// so one bad seed directory reports alongside the rest instead of masking
// them.
func BuildJobs(spec Spec) ([]run.Job, error) {
	seedNames, err := Discover(spec.SeedsRoot, spec.Include)
	if err != nil {
		return nil, err
	}

	var merr *multierror.Error
	jobs := make([]run.Job, 0, len(seedNames))
	for _, name := range seedNames {
		outDir := filepath.Join(spec.OutputRoot, name)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			merr = multierror.Append(merr, errors.Wrapf(err, "creating output dir for %s", name))
			continue
		}

		job := run.Job{
			Name: name,
			Argv: buildArgv(spec, filepath.Join(spec.SeedsRoot, name), outDir),
			// The predictor resolves its data files relative to the script.
			WorkDir: filepath.Dir(spec.Script),
		}
		if spec.LogDir != "" {
			job.LogPath = filepath.Join(spec.LogDir, name+".log")
		}
		jobs = append(jobs, job)
	}
	return jobs, merr.ErrorOrNil()
}

// buildArgv assembles the prediction command for one seed. The alignments
// flag points at the seed directory itself, which is where precomputed
// alignments live in this layout.
func buildArgv(spec Spec, seedDir, outDir string) []string {
	argv := []string{
		spec.Python, spec.Script,
		spec.FastaDir,
		spec.MmcifDir,
		"--output_dir", outDir,
		"--use_precomputed_alignments", seedDir,
		"--config_preset", spec.ConfigPreset,
		"--model_device", "cuda:0",
	}
	if spec.SkipRelaxation {
		argv = append(argv, "--skip_relaxation")
	}
	return argv
}
