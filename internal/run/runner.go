// Package run executes a single prediction job as a child process pinned to
// one GPU and decides from its exit code and log text whether it really
// succeeded.
package run

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	cudaVisibleDevices = "CUDA_VISIBLE_DEVICES"
	cudaDeviceOrder    = "CUDA_DEVICE_ORDER"
	pciBusIDOrder      = "PCI_BUS_ID"

	// DefaultTailBytes is how much of the end of a log file is read back for
	// marker scanning. 200KB of tail is plenty to catch a stack trace.
	DefaultTailBytes = 200_000

	// markerExitCode is the synthetic code reported when a zero-exit run is
	// overridden to failed because its output contains a failure marker.
	markerExitCode = 1

	// spawnExitCode is the synthetic code reported when the child process
	// could not be started at all.
	spawnExitCode = -1
)

// DefaultMarkers are the literal substrings that mark a run as failed even
// when the wrapped program exits zero. The wrapped predictor is known to exit
// zero on some partial-failure paths, so exit codes alone cannot be trusted.
var DefaultMarkers = []string{
	"Traceback (most recent call last)",
	"ValueError:",
	"RuntimeError:",
	"AssertionError:",
	"Error:",
	"Exception:",
	"More than one input sequence found",
}

// Verdict is the binary outcome of one job attempt.
type Verdict int

// Possible verdicts.
const (
	Succeeded Verdict = iota
	Failed
)

func (v Verdict) String() string {
	if v == Succeeded {
		return "succeeded"
	}
	return "failed"
}

// Job is one unit of work: a fully resolved command line, where to run it,
// and where its output goes. Immutable once created.
type Job struct {
	Name    string
	Argv    []string
	LogPath string // empty means capture output in memory only
	WorkDir string
}

// Result is the outcome of one attempt at a job.
type Result struct {
	Job      Job
	GPU      string
	Verdict  Verdict
	ExitCode int
	Duration time.Duration
}

// Options configures a Runner.
type Options struct {
	// Markers are literal substrings scanned for in captured output. A zero
	// exit with any marker present is reclassified as a failure.
	Markers []string
	// TailBytes bounds how much of a log file is read back after the run.
	TailBytes int64
	// Timeout, when nonzero, kills the child and fails the job on expiry.
	Timeout time.Duration
}

// Runner launches jobs and classifies their outcomes. Safe for concurrent
// use; it holds no per-job state.
type Runner struct {
	log  *logrus.Entry
	opts Options
}

// New returns a runner with defaults filled in for any unset option.
func New(opts Options) *Runner {
	if len(opts.Markers) == 0 {
		opts.Markers = DefaultMarkers
	}
	if opts.TailBytes <= 0 {
		opts.TailBytes = DefaultTailBytes
	}
	return &Runner{
		log:  logrus.WithField("component", "runner"),
		opts: opts,
	}
}

// Run executes the job pinned to the given GPU id and blocks until the child
// exits. A failure to even start the child is classified as a failed attempt
// rather than an error, so one bad path cannot abort a whole batch.
func (r *Runner) Run(ctx context.Context, job Job, gpu string) Result {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	code, text := r.launch(ctx, job, gpu)

	verdict := Succeeded
	if code != 0 {
		verdict = Failed
	} else if marker := r.scanMarkers(text); marker != "" {
		r.log.WithFields(logrus.Fields{"job": job.Name, "marker": marker}).
			Warn("exit code 0 but output contains a failure marker")
		code = markerExitCode
		verdict = Failed
	}

	return Result{
		Job:      job,
		GPU:      gpu,
		Verdict:  verdict,
		ExitCode: code,
		Duration: time.Since(start),
	}
}

// launch starts the child and returns its exit code and the text to scan for
// failure markers.
func (r *Runner) launch(ctx context.Context, job Job, gpu string) (int, string) {
	// #nosec G204 // The argv was resolved by the caller; that is the point.
	cmd := exec.CommandContext(ctx, job.Argv[0], job.Argv[1:]...)
	cmd.Dir = job.WorkDir
	cmd.Env = overlayEnv(os.Environ(), gpu)
	if r.opts.Timeout > 0 {
		// Without this a killed child whose grandchildren still hold the
		// output pipe would block the worker slot past its timeout.
		cmd.WaitDelay = 10 * time.Second
	}

	if job.LogPath == "" {
		var buf bytes.Buffer
		cmd.Stdout = &buf
		cmd.Stderr = &buf
		code, ok := r.wait(ctx, cmd, job)
		if !ok {
			return code, ""
		}
		return code, buf.String()
	}

	logFile, err := os.Create(job.LogPath)
	if err != nil {
		r.log.WithError(err).WithField("job", job.Name).Error("cannot create log file")
		return spawnExitCode, ""
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	code, ok := r.wait(ctx, cmd, job)
	if closeErr := logFile.Close(); closeErr != nil {
		r.log.WithError(closeErr).WithField("job", job.Name).Warn("closing log file")
	}
	if !ok {
		return code, ""
	}
	return code, tailFile(job.LogPath, r.opts.TailBytes)
}

// wait runs the command to completion. The second return is false when the
// child never ran, in which case the code is synthetic.
func (r *Runner) wait(ctx context.Context, cmd *exec.Cmd, job Job) (int, bool) {
	err := cmd.Run()
	if err == nil {
		return 0, true
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		// The child exited but something kept its output open; the exit code
		// is still trustworthy.
		return cmd.ProcessState.ExitCode(), true
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		r.log.WithError(err).WithField("job", job.Name).Error("could not start job")
		return spawnExitCode, false
	}
	if ctx.Err() == context.DeadlineExceeded {
		r.log.WithFields(logrus.Fields{"job": job.Name, "timeout": r.opts.Timeout}).
			Warn("job killed after exceeding its timeout")
	}
	return exitErr.ExitCode(), true
}

// scanMarkers returns the first failure marker present in text, or "".
func (r *Runner) scanMarkers(text string) string {
	for _, marker := range r.opts.Markers {
		if strings.Contains(text, marker) {
			return marker
		}
	}
	return ""
}

// overlayEnv returns env with GPU visibility pinned to the given id. The
// device enumeration order is forced to a stable value unless the caller
// already set one, so numeric ids mean the same device run to run.
func overlayEnv(env []string, gpu string) []string {
	out := make([]string, 0, len(env)+2)
	haveOrder := false
	for _, kv := range env {
		switch {
		case strings.HasPrefix(kv, cudaVisibleDevices+"="):
			continue
		case strings.HasPrefix(kv, cudaDeviceOrder+"="):
			haveOrder = true
		}
		out = append(out, kv)
	}
	out = append(out, cudaVisibleDevices+"="+gpu)
	if !haveOrder {
		out = append(out, cudaDeviceOrder+"="+pciBusIDOrder)
	}
	return out
}

// tailFile reads at most tail bytes from the end of path. Any read problem
// degrades to an empty string so classification falls back to the exit code.
func tailFile(path string, tail int64) string {
	f, err := os.Open(path) // #nosec G304 // We wrote this file moments ago.
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	if info.Size() > tail {
		if _, err := f.Seek(info.Size()-tail, io.SeekStart); err != nil {
			return ""
		}
	}
	bs, err := io.ReadAll(f)
	if err != nil {
		return ""
	}
	return string(bs)
}
