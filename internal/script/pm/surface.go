package pm

import (
	"errors"

	"github.com/dop251/goja"

	"github.com/apiforge/forge/backend/internal/script"
	"github.com/apiforge/forge/backend/internal/script/assert"
)

// Captures collects everything a script produces during one job. Reset by
// allocating a fresh instance per job; never reused.
type Captures struct {
	Console []string
	Tests   []script.TestOutcome

	EnvironmentUpdates map[string]string
	GlobalUpdates      map[string]string

	Patch          script.RequestPatch
	RequestTouched bool
}

// NewCaptures returns an empty capture buffer.
func NewCaptures() *Captures {
	return &Captures{
		EnvironmentUpdates: make(map[string]string),
		GlobalUpdates:      make(map[string]string),
	}
}

// headerDelta records a header change in the request patch. A nil value is
// the deletion sentinel.
func (c *Captures) headerDelta(key string, value *string) {
	if c.Patch.Headers == nil {
		c.Patch.Headers = make(map[string]*string)
	}
	c.Patch.Headers[key] = value
	c.RequestTouched = true
}

// Build constructs the pm object for job inside rt, wiring all writes into
// caps. The response view is only present for test-phase jobs.
func Build(rt *goja.Runtime, job *script.ExecutionJob, caps *Captures) error {
	pmObj := rt.NewObject()

	req := newRequestView(rt, &job.Request, caps)
	pmObj.Set("request", req)

	if job.Phase == script.PhaseTest && job.Response != nil {
		pmObj.Set("response", newResponseView(rt, job.Response))
	}

	pmObj.Set("environment", newNamespace(rt, job.Environment, caps.EnvironmentUpdates))
	pmObj.Set("globals", newNamespace(rt, job.Globals, caps.GlobalUpdates))
	// Collection variables: writes are visible to the running script but the
	// updates map is nil, so nothing is surfaced in the result.
	pmObj.Set("collectionVariables", newNamespace(rt, job.CollectionVariables, nil))

	pmObj.Set("test", makeTestRegistrar(caps))

	pmObj.Set("expect", func(call goja.FunctionCall) goja.Value {
		return assert.New(rt, call.Argument(0))
	})

	pmObj.Set("sendRequest", func(goja.FunctionCall) goja.Value {
		assert.Raise(rt, "Error", "pm.sendRequest is not implemented")
		return goja.Undefined()
	})

	if err := rt.Set("pm", pmObj); err != nil {
		return err
	}
	installConsole(rt, caps)
	return nil
}

// makeTestRegistrar returns the pm.test implementation: run the callback
// synchronously, record pass/fail, never re-raise.
func makeTestRegistrar(caps *Captures) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()

		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			caps.Tests = append(caps.Tests, script.TestOutcome{
				Name:  name,
				Error: "test callback is not a function",
			})
			return goja.Undefined()
		}

		if _, err := fn(goja.Undefined()); err != nil {
			caps.Tests = append(caps.Tests, script.TestOutcome{
				Name:  name,
				Error: ErrorMessage(err),
			})
			return goja.Undefined()
		}

		caps.Tests = append(caps.Tests, script.TestOutcome{Name: name, Passed: true})
		return goja.Undefined()
	}
}

// ErrorMessage extracts a presentable message from a goja evaluation error,
// preferring the thrown Error object's name and message over the Go-side
// rendering (which appends a stack trace).
func ErrorMessage(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		v := ex.Value()
		if obj, isObj := v.(*goja.Object); isObj {
			if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
				if name := obj.Get("name"); name != nil && !goja.IsUndefined(name) {
					return name.String() + ": " + msg.String()
				}
				return msg.String()
			}
		}
		return v.String()
	}
	return err.Error()
}
