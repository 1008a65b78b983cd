// Package batch wires discovery, the job runner, and the round scheduler
// into one batch run.
package batch

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	log "github.com/sirupsen/logrus"

	"github.com/foldbatch/foldbatch/internal/options"
	"github.com/foldbatch/foldbatch/internal/run"
	"github.com/foldbatch/foldbatch/internal/sched"
	"github.com/foldbatch/foldbatch/internal/seeds"
	"github.com/foldbatch/foldbatch/pkg/device"
)

// Run executes a full batch with the provided options: build one job per
// seed, drive the retry rounds, report. Residual failures after the retry
// budget are reported but are not an error; remediation is the operator's
// call.
func Run(parent context.Context, version string, opts options.Options) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printableConfig, err := opts.Printable()
	if err != nil {
		return err
	}
	runLog := log.WithField("run_id", uuid.NewString())
	runLog.Infof("foldbatch %s configuration: %s", version, printableConfig)
	logHostInfo(runLog)

	pool, err := device.ParsePool(opts.GPUs)
	if err != nil {
		return err
	}

	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
			return errors.Wrapf(err, "creating log dir %s", opts.LogDir)
		}
	}

	jobs, err := seeds.BuildJobs(seeds.Spec{
		SeedsRoot:      opts.SeedsRoot,
		OutputRoot:     opts.OutputRoot,
		FastaDir:       opts.FastaDir,
		MmcifDir:       opts.MmcifDir,
		Script:         opts.Script,
		Python:         opts.Python,
		ConfigPreset:   opts.ConfigPreset,
		SkipRelaxation: opts.SkipRelaxation,
		LogDir:         opts.LogDir,
		Include:        opts.Include,
	})
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return errors.Errorf("no seed directories found under %s", opts.SeedsRoot)
	}

	runLog.Infof("planning %d jobs across GPUs %s", len(jobs), pool)
	for _, job := range jobs {
		runLog.Infof("[CMD][%s] %s", job.Name, strings.Join(job.Argv, " "))
	}
	if opts.DryRun {
		runLog.Info("dry run requested, not executing")
		return nil
	}

	runner := run.New(run.Options{
		Markers: opts.FailureMarkers,
		Timeout: opts.ParsedJobTimeout(),
	})
	scheduler := sched.New(runner, pool, sched.Options{
		MaxRetries:   opts.MaxRetries,
		RetryBackoff: opts.RetryBackoff,
	})

	report := scheduler.Drive(ctx, jobs)
	runLog.Infof("all done after %d round(s): %d succeeded, %d failed",
		report.Rounds, len(report.Succeeded), len(report.Failed))
	if len(report.Failed) > 0 {
		runLog.Warnf("seeds still failing: %s", strings.Join(report.FailedNames(), ", "))
	}
	return nil
}

func logHostInfo(runLog *log.Entry) {
	cores, err := cpu.Counts(true)
	if err != nil {
		runLog.WithError(err).Debug("could not read CPU info")
		return
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		runLog.WithError(err).Debug("could not read memory info")
		return
	}
	runLog.Infof("host: %d logical cores, %.1f GiB memory",
		cores, float64(vm.Total)/(1<<30))
}
