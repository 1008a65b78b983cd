// Package sched maps independent prediction jobs onto a fixed pool of GPU
// slots, runs each round concurrently bounded by pool size, and drives a
// bounded retry loop over the jobs that fail.
package sched

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/foldbatch/foldbatch/internal/run"
	"github.com/foldbatch/foldbatch/pkg/device"
)

// Runner executes one job attempt pinned to one GPU id.
type Runner interface {
	Run(ctx context.Context, job run.Job, gpu string) run.Result
}

// Options configures a Scheduler.
type Options struct {
	// MaxRetries is the number of additional rounds run over failed jobs
	// beyond the first round.
	MaxRetries int
	// RetryBackoff inserts an exponential pause before each retry round,
	// which helps when failures are transient resource pressure.
	RetryBackoff bool
}

// Scheduler owns the GPU pool and runs jobs against it round by round.
type Scheduler struct {
	log    *logrus.Entry
	runner Runner
	pool   device.Pool
	opts   Options
}

// New returns a scheduler over the given pool. The pool must be non-empty;
// the caller validates that.
func New(runner Runner, pool device.Pool, opts Options) *Scheduler {
	return &Scheduler{
		log:    logrus.WithField("component", "sched"),
		runner: runner,
		pool:   pool,
		opts:   opts,
	}
}

// RoundResult partitions one round's jobs by outcome. Failed jobs keep their
// original command, log path, and working directory so a retry round can
// reuse them unchanged.
type RoundResult struct {
	Succeeded []string
	Failed    []run.Job
}

// Report is the aggregate outcome of a full drive across all rounds.
type Report struct {
	Succeeded []string
	Failed    []run.Job
	Rounds    int
}

// FailedNames lists the names of jobs still failing when the drive ended.
func (r Report) FailedNames() []string {
	names := make([]string, 0, len(r.Failed))
	for _, job := range r.Failed {
		names = append(names, job.Name)
	}
	return names
}

// RunRound runs every job in jobs exactly once, at most len(pool) at a time.
// Job i is assigned pool[i mod len(pool)]; sharing an id is allowed when jobs
// outnumber ids, since the pool bounds concurrency rather than granting
// exclusive devices. A one-line status is emitted the moment each job
// finishes.
func (s *Scheduler) RunRound(ctx context.Context, jobs []run.Job) RoundResult {
	results := make(chan run.Result)

	var g errgroup.Group
	g.SetLimit(len(s.pool))
	go func() {
		defer close(results)
		for i, job := range jobs {
			job := job
			gpu := s.pool.ForIndex(i)
			// Go blocks here once len(pool) jobs are in flight; that is the
			// bounded-pool backpressure, there is no unbounded spawning.
			g.Go(func() error {
				results <- s.runner.Run(ctx, job, gpu)
				return nil
			})
		}
		_ = g.Wait()
	}()

	// Aggregation happens only on this goroutine, so no lock is needed.
	var out RoundResult
	for res := range results {
		if res.Verdict == run.Succeeded {
			s.log.Infof("[OK][GPU%s][%s]", res.GPU, res.Job.Name)
			out.Succeeded = append(out.Succeeded, res.Job.Name)
		} else {
			s.log.Warnf("[FAIL][GPU%s][%s] ret=%d", res.GPU, res.Job.Name, res.ExitCode)
			out.Failed = append(out.Failed, res.Job)
		}
	}
	return out
}

// Drive runs round 1 over all jobs, then retries the failed set while any
// remain and the retry budget holds. Success is terminal per job; a job
// leaves the pending set the first time it succeeds.
func (s *Scheduler) Drive(ctx context.Context, jobs []run.Job) Report {
	res := s.RunRound(ctx, jobs)
	succeeded := res.Succeeded
	failed := res.Failed
	s.log.Infof("round 1: %d succeeded, %d failed", len(res.Succeeded), len(res.Failed))

	bo := backoff.NewExponentialBackOff()
	retries := 0
	for len(failed) > 0 && retries < s.opts.MaxRetries {
		retries++
		if s.opts.RetryBackoff && !s.sleep(ctx, bo.NextBackOff()) {
			break
		}
		s.log.Infof("retry #%d: re-running %d failed jobs", retries, len(failed))
		res = s.RunRound(ctx, failed)
		succeeded = append(succeeded, res.Succeeded...)
		failed = res.Failed
		s.log.Infof("round %d: %d succeeded, %d still failing",
			retries+1, len(res.Succeeded), len(res.Failed))
	}

	return Report{Succeeded: succeeded, Failed: failed, Rounds: retries + 1}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	s.log.Debugf("backing off %s before retry round", d)
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
