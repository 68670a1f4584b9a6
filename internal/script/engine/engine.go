package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/apiforge/forge/backend/internal/infrastructure/monitoring"
	"github.com/apiforge/forge/backend/internal/logging"
	"github.com/apiforge/forge/backend/internal/script"
	"github.com/apiforge/forge/backend/internal/shared/id"
)

var (
	// ErrTimeout is returned when the outer timer fires before a result
	// arrives. The worker may still be mid-job; its late result is dropped.
	ErrTimeout = errors.New("script execution timed out")

	// ErrWorkerCrashed rejects every job that was pending when the worker
	// panicked. Jobs are not retried automatically.
	ErrWorkerCrashed = errors.New("script worker crashed")

	// ErrClosed is returned for submissions after Close.
	ErrClosed = errors.New("script engine is closed")
)

// Config holds the two timeout contract values. The outer timeout must stay
// strictly above the inner one so genuine script timeouts are reported as
// such instead of as orchestrator timeouts.
type Config struct {
	InnerTimeout time.Duration
	OuterTimeout time.Duration
}

// DefaultConfig returns the fixed contract values: 30s inner, 35s outer.
func DefaultConfig() Config {
	return Config{
		InnerTimeout: 30 * time.Second,
		OuterTimeout: 35 * time.Second,
	}
}

type pendingResult struct {
	res *script.ExecutionResult
	err error
}

// Engine is the host orchestrator: it owns the current worker, correlates
// results to jobs by id, enforces the outer timeout and respawns the worker
// after a crash.
type Engine struct {
	cfg     Config
	log     *logging.Logger
	metrics *monitoring.Metrics // optional

	mu      sync.Mutex
	pending map[string]chan pendingResult
	worker  *Worker
	closed  bool
}

// New creates an engine and spawns its worker. A nil metrics is allowed.
func New(cfg Config, log *logging.Logger, metrics *monitoring.Metrics) *Engine {
	if cfg.InnerTimeout <= 0 {
		cfg.InnerTimeout = DefaultConfig().InnerTimeout
	}
	if cfg.OuterTimeout <= cfg.InnerTimeout {
		cfg.OuterTimeout = cfg.InnerTimeout + 5*time.Second
	}

	e := &Engine{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		pending: make(map[string]chan pendingResult),
	}
	e.worker = newWorker(cfg.InnerTimeout, log)
	go e.dispatch(e.worker)
	return e
}

// Execute runs one script job and blocks until its result, the outer
// timeout or ctx cancellation, whichever comes first. The job's ID and
// Script fields are assigned here; everything else is caller-provided.
func (e *Engine) Execute(ctx context.Context, scriptText string, job *script.ExecutionJob) (*script.ExecutionResult, error) {
	if job == nil {
		job = &script.ExecutionJob{}
	}
	if !job.Phase.Valid() {
		return nil, fmt.Errorf("invalid script phase %q", job.Phase)
	}
	job.ID = id.NewJobID().String()
	job.Script = scriptText

	ch := make(chan pendingResult, 1)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	worker := e.worker
	e.pending[job.ID] = ch
	e.mu.Unlock()

	start := time.Now()
	outer := time.NewTimer(e.cfg.OuterTimeout)
	defer outer.Stop()

	// Submission waits its turn: the worker takes one job at a time, and
	// queue time counts against the outer window.
	select {
	case worker.jobs <- job:
	case <-outer.C:
		e.unregister(job.ID)
		e.recordExecution(job.Phase, "timeout", start)
		return nil, fmt.Errorf("%w after %s", ErrTimeout, e.cfg.OuterTimeout)
	case <-ctx.Done():
		e.unregister(job.ID)
		return nil, ctx.Err()
	case <-worker.crashed:
		// dispatch rejects the pending entry; fall through to read it.
	}

	select {
	case pr := <-ch:
		if pr.err != nil {
			return nil, pr.err
		}
		e.recordExecution(job.Phase, string(pr.res.Outcome), start)
		return pr.res, nil
	case <-outer.C:
		e.unregister(job.ID)
		e.recordExecution(job.Phase, "timeout", start)
		return nil, fmt.Errorf("%w after %s", ErrTimeout, e.cfg.OuterTimeout)
	case <-ctx.Done():
		e.unregister(job.ID)
		return nil, ctx.Err()
	}
}

// dispatch pumps one worker's results into pending entries, and handles the
// worker's death. It exits when the worker stops cleanly or, on a crash,
// after handing off to the replacement worker's dispatcher.
func (e *Engine) dispatch(w *Worker) {
	for {
		select {
		case res := <-w.results:
			e.resolve(res)
		case <-w.crashed:
			e.failAllPending(ErrWorkerCrashed)
			e.mu.Lock()
			if e.closed {
				e.mu.Unlock()
				return
			}
			replacement := newWorker(e.cfg.InnerTimeout, e.log)
			e.worker = replacement
			e.mu.Unlock()
			if e.metrics != nil {
				e.metrics.RecordWorkerRestart()
			}
			e.log.Warn("script worker respawned after crash")
			go e.dispatch(replacement)
			return
		case <-w.stopped:
			return
		}
	}
}

// resolve completes the pending entry matching res, if one still exists.
// Results for ids without an entry (already timed out, or unknown) are
// logged and dropped so no id ever resolves twice.
func (e *Engine) resolve(res *script.ExecutionResult) {
	e.mu.Lock()
	ch, ok := e.pending[res.ID]
	if ok {
		delete(e.pending, res.ID)
	}
	e.mu.Unlock()

	if !ok {
		e.log.Warn("discarding result for unknown or timed-out job", zap.String("job_id", res.ID))
		return
	}
	ch <- pendingResult{res: res}
}

func (e *Engine) failAllPending(err error) {
	e.mu.Lock()
	entries := e.pending
	e.pending = make(map[string]chan pendingResult)
	e.mu.Unlock()

	for jobID, ch := range entries {
		e.log.Warn("rejecting pending job", zap.String("job_id", jobID), zap.Error(err))
		ch <- pendingResult{err: err}
	}
}

func (e *Engine) unregister(jobID string) {
	e.mu.Lock()
	delete(e.pending, jobID)
	e.mu.Unlock()
}

func (e *Engine) recordExecution(phase script.Phase, outcome string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordExecution(string(phase), outcome, time.Since(start))
	}
}

// Close stops the worker and rejects anything still pending.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	worker := e.worker
	e.mu.Unlock()

	e.failAllPending(ErrClosed)
	worker.stop()
	return nil
}
