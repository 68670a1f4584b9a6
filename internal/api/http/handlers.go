// Package http exposes the REST surface: standalone script execution and
// the full pre-request/dispatch/test pipeline.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/apiforge/forge/backend/internal/infrastructure/monitoring"
	"github.com/apiforge/forge/backend/internal/logging"
	"github.com/apiforge/forge/backend/internal/runner"
	"github.com/apiforge/forge/backend/internal/script"
	"github.com/apiforge/forge/backend/internal/script/engine"
	"github.com/apiforge/forge/backend/internal/vars"
)

// Handlers bundles the script engine and its collaborators for the REST API.
type Handlers struct {
	engine     *engine.Engine
	dispatcher runner.Dispatcher
	env        *vars.Store
	globals    *vars.Store
	log        *logging.Logger
	metrics    *monitoring.Metrics
}

// NewHandlers creates the handler set. metrics may be nil.
func NewHandlers(eng *engine.Engine, dispatcher runner.Dispatcher, env, globals *vars.Store, log *logging.Logger, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		engine:     eng,
		dispatcher: dispatcher,
		env:        env,
		globals:    globals,
		log:        log,
		metrics:    metrics,
	}
}

// executeRequest is the POST /v1/execute payload: one script plus the
// context it runs against.
type executeRequest struct {
	Script              string                  `json:"script" binding:"required"`
	Phase               script.Phase            `json:"phase" binding:"required"`
	Request             script.RequestSnapshot  `json:"request"`
	Response            *script.ResponseSnapshot `json:"response"`
	Environment         map[string]string       `json:"environment"`
	Globals             map[string]string       `json:"globals"`
	CollectionVariables map[string]string       `json:"collectionVariables"`
}

// runRequest is the POST /v1/run payload: an editor request with optional
// pre-request and test scripts.
type runRequest struct {
	Request             script.RequestSnapshot `json:"request" binding:"required"`
	PreRequestScript    string                 `json:"preRequestScript"`
	TestScript          string                 `json:"testScript"`
	CollectionVariables map[string]string      `json:"collectionVariables"`
}

// runResponse is the pipeline result: the response as dispatched plus the
// outcome of each script stage.
type runResponse struct {
	Response   *script.ResponseSnapshot `json:"response,omitempty"`
	PreRequest *script.ExecutionResult  `json:"preRequest,omitempty"`
	Tests      *script.ExecutionResult  `json:"tests,omitempty"`
}

// Execute handles POST /v1/execute: run one script in isolation and return
// its result. Store state is not touched; the caller supplies and receives
// all variable state explicitly.
func (h *Handlers) Execute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if !req.Phase.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phase must be \"pre-request\" or \"test\""})
		return
	}

	job := &script.ExecutionJob{
		Phase:               req.Phase,
		Request:             req.Request,
		Response:            req.Response,
		Environment:         req.Environment,
		Globals:             req.Globals,
		CollectionVariables: req.CollectionVariables,
	}

	res, err := h.engine.Execute(c.Request.Context(), req.Script, job)
	if err != nil {
		h.renderEngineError(c, err)
		return
	}

	h.recordTests(res)
	c.JSON(http.StatusOK, res)
}

// Run handles POST /v1/run: the full pipeline. The pre-request script runs
// first and its variable updates are persisted and its request patch applied,
// then the request is dispatched, then the test script runs against the
// response. A pre-request script error aborts the pipeline.
func (h *Handlers) Run(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	out := runResponse{}
	snap := req.Request

	if req.PreRequestScript != "" {
		job := &script.ExecutionJob{
			Phase:               script.PhasePreRequest,
			Request:             snap,
			Environment:         h.env.Snapshot(),
			Globals:             h.globals.Snapshot(),
			CollectionVariables: req.CollectionVariables,
		}
		res, err := h.engine.Execute(ctx, req.PreRequestScript, job)
		if err != nil {
			h.renderEngineError(c, err)
			return
		}
		out.PreRequest = res
		h.recordTests(res)
		if res.Outcome == script.OutcomeError {
			c.JSON(http.StatusOK, out)
			return
		}
		h.env.Apply(res.EnvironmentUpdates)
		h.globals.Apply(res.GlobalUpdates)
		if res.RequestUpdates != nil {
			snap = runner.ApplyPatch(snap, res.RequestUpdates)
		}
	}

	resp, err := h.dispatcher.Dispatch(ctx, snap)
	if h.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		h.metrics.RecordDispatch(outcome)
	}
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, runner.ErrCircuitOpen) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	out.Response = resp

	if req.TestScript != "" {
		job := &script.ExecutionJob{
			Phase:               script.PhaseTest,
			Request:             snap,
			Response:            resp,
			Environment:         h.env.Snapshot(),
			Globals:             h.globals.Snapshot(),
			CollectionVariables: req.CollectionVariables,
		}
		res, err := h.engine.Execute(ctx, req.TestScript, job)
		if err != nil {
			h.renderEngineError(c, err)
			return
		}
		out.Tests = res
		h.recordTests(res)
		h.env.Apply(res.EnvironmentUpdates)
		h.globals.Apply(res.GlobalUpdates)
	}

	c.JSON(http.StatusOK, out)
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handlers) renderEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrWorkerCrashed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.log.Error("script execution failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func (h *Handlers) recordTests(res *script.ExecutionResult) {
	if h.metrics == nil || res == nil {
		return
	}
	passed, failed := 0, 0
	for _, t := range res.Tests {
		if t.Passed {
			passed++
		} else {
			failed++
		}
	}
	h.metrics.RecordTests(passed, failed)
}
