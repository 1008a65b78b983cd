package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/foldbatch/foldbatch/internal/batch"
	"github.com/foldbatch/foldbatch/internal/options"
	"github.com/foldbatch/foldbatch/pkg/check"
)

var v *viper.Viper

func newRunCmd() *cobra.Command {
	v = viper.New()
	defaults := options.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the batch of predictions",
		Args:  cobra.NoArgs,
	}

	if err := registerRunFlags(cmd, defaults); err != nil {
		panic(err)
	}

	cmd.RunE = func(*cobra.Command, []string) error {
		// Viper currently holds defaults plus any flags that overwrote them.
		opts, err := getRunConfig()
		if err != nil {
			return err
		}

		// Merge config-file values underneath, giving the precedence
		// flag > config > default.
		bs, err := readConfigFile(opts.ConfigFile)
		if err != nil {
			return err
		}
		if bs != nil {
			if opts, err = mergeConfigIntoViper(bs); err != nil {
				return err
			}
		}

		opts.Resolve()
		if err = check.Validate(*opts); err != nil {
			return errors.Wrap(err, "command-line arguments specify illegal configuration")
		}

		if err := batch.Run(context.Background(), version, *opts); err != nil {
			log.Fatal(err)
		}
		return nil
	}

	return cmd
}

func registerRunFlags(cmd *cobra.Command, defaults *options.Options) error {
	flags := cmd.Flags()
	flags.String("config-file", "", "path to an optional YAML configuration file")
	flags.String("seeds-root", "", "root directory containing one subdirectory per seed")
	flags.String("output-root", "", "directory receiving per-seed prediction output")
	flags.String("fasta-dir", "", "FASTA directory passed to the prediction script")
	flags.String("mmcif-dir", "", "mmCIF directory passed to the prediction script")
	flags.String("log-dir", "", "write each seed's output to <log-dir>/<seed>.log instead of memory")
	flags.String("python", defaults.Python, "python interpreter used to launch the script")
	flags.String("script", defaults.Script, "path to the prediction script")
	flags.String("config-preset", defaults.ConfigPreset, "model config preset passed to the script")
	flags.Bool("skip-relaxation", false, "pass --skip_relaxation to the prediction script")
	flags.String("gpus", defaults.GPUs, "comma-separated GPU ids; pool size bounds concurrency")
	flags.StringSlice("include", nil, "only run the named seeds (repeatable)")
	flags.Int("max-retries", defaults.MaxRetries, "additional rounds over failed jobs beyond the first")
	flags.String("job-timeout", "", "kill a job after this duration (e.g. 45m); empty disables")
	flags.Bool("retry-backoff", false, "pause with exponential backoff before each retry round")
	flags.Bool("dry-run", false, "print the constructed commands without executing anything")
	flags.StringSlice("failure-marker", nil,
		"literal substring that marks a zero-exit run as failed (repeatable, replaces defaults)")

	for key, name := range map[string]string{
		"config_file":     "config-file",
		"seeds_root":      "seeds-root",
		"output_root":     "output-root",
		"fasta_dir":       "fasta-dir",
		"mmcif_dir":       "mmcif-dir",
		"log_dir":         "log-dir",
		"python":          "python",
		"script":          "script",
		"config_preset":   "config-preset",
		"skip_relaxation": "skip-relaxation",
		"gpus":            "gpus",
		"include":         "include",
		"max_retries":     "max-retries",
		"job_timeout":     "job-timeout",
		"retry_backoff":   "retry-backoff",
		"dry_run":         "dry-run",
		"failure_markers": "failure-marker",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return errors.Wrapf(err, "binding flag %s", name)
		}
	}
	return nil
}

func mergeConfigIntoViper(bs []byte) (*options.Options, error) {
	var configMap map[string]interface{}
	if err := yaml.Unmarshal(bs, &configMap); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal yaml configuration file")
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return nil, errors.Wrap(err, "can't merge configuration to viper")
	}

	return getRunConfig()
}

func getRunConfig() (*options.Options, error) {
	bs, err := json.Marshal(v.AllSettings())
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal configuration map into json bytes")
	}

	opts := options.DefaultOptions()
	if err = yaml.Unmarshal(bs, opts, yaml.DisallowUnknownFields); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal configuration")
	}
	return opts, nil
}

func readConfigFile(configPath string) ([]byte, error) {
	if configPath == "" {
		return nil, nil
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, errors.Wrap(err, "error finding configuration file")
	}
	bs, err := os.ReadFile(configPath) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "error reading configuration file")
	}
	return bs, nil
}
