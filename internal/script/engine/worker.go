package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/apiforge/forge/backend/internal/logging"
	"github.com/apiforge/forge/backend/internal/script"
	"github.com/apiforge/forge/backend/internal/script/classify"
	"github.com/apiforge/forge/backend/internal/script/pm"
)

// Worker states.
const (
	stateIdle int32 = iota
	stateRunning
)

// Worker is the isolated execution unit: one goroutine, one job at a time,
// one result per job. Each job runs in a brand-new hardened VM so script
// globals cannot leak between jobs.
type Worker struct {
	innerTimeout time.Duration
	log          *logging.Logger

	jobs    chan *script.ExecutionJob
	results chan *script.ExecutionResult

	crashed chan struct{} // closed when the loop dies from a panic
	stopped chan struct{} // closed on orderly shutdown
	quit    chan struct{}

	state int32
}

func newWorker(innerTimeout time.Duration, log *logging.Logger) *Worker {
	w := &Worker{
		innerTimeout: innerTimeout,
		log:          log,
		jobs:         make(chan *script.ExecutionJob),
		results:      make(chan *script.ExecutionResult, 1),
		crashed:      make(chan struct{}),
		stopped:      make(chan struct{}),
		quit:         make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("script worker crashed", zap.Any("panic", r))
			close(w.crashed)
			return
		}
		close(w.stopped)
	}()

	for {
		select {
		case <-w.quit:
			return
		case job := <-w.jobs:
			atomic.StoreInt32(&w.state, stateRunning)
			res := w.run(job)
			atomic.StoreInt32(&w.state, stateIdle)
			select {
			case w.results <- res:
			case <-w.quit:
				return
			}
		}
	}
}

// run evaluates one job. It always returns exactly one result: completion,
// script error and timeout all collapse into the same single-answer path
// because evaluation is synchronous and the interrupt surfaces as an error.
func (w *Worker) run(job *script.ExecutionJob) *script.ExecutionResult {
	res := &script.ExecutionResult{ID: job.ID, Outcome: script.OutcomeOK}

	rt := goja.New()
	harden(rt)

	caps := pm.NewCaptures()
	if err := pm.Build(rt, job, caps); err != nil {
		res.Outcome = script.OutcomeError
		res.Error = fmt.Sprintf("failed to prepare script environment: %v", err)
		return res
	}

	timer := time.AfterFunc(w.innerTimeout, func() {
		rt.Interrupt("timed out")
	})
	_, err := rt.RunString(job.Script)
	timer.Stop()
	rt.ClearInterrupt()

	w.collect(res, caps)

	if err != nil {
		res.Outcome = script.OutcomeError
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			res.Error = fmt.Sprintf("script execution timed out after %s", w.innerTimeout)
		} else {
			res.Error = classify.Rewrite(pm.ErrorMessage(err), job.Script, job.Phase == script.PhasePreRequest)
		}
	}
	return res
}

// collect drains the capture buffers into the result. Untouched scopes yield
// no map at all, not an empty one.
func (w *Worker) collect(res *script.ExecutionResult, caps *pm.Captures) {
	res.Tests = caps.Tests
	res.Console = caps.Console
	if len(caps.EnvironmentUpdates) > 0 {
		res.EnvironmentUpdates = caps.EnvironmentUpdates
	}
	if len(caps.GlobalUpdates) > 0 {
		res.GlobalUpdates = caps.GlobalUpdates
	}
	if caps.RequestTouched {
		res.RequestUpdates = &caps.Patch
	}
}

// harden strips host capabilities from a fresh VM before any script code
// runs: no module system, no process, inert timers.
func harden(rt *goja.Runtime) {
	rt.Set("require", goja.Undefined())
	rt.Set("process", goja.Undefined())
	rt.Set("module", goja.Undefined())
	rt.Set("exports", goja.Undefined())
	rt.Set("globalThis", rt.GlobalObject())

	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	rt.Set("setTimeout", noop)
	rt.Set("setInterval", noop)
	rt.Set("setImmediate", noop)
}

func (w *Worker) stop() {
	close(w.quit)
}
