// Package ws streams script executions over a WebSocket so the editor can
// run scripts without a request/response round trip per execution.
package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/apiforge/forge/backend/internal/infrastructure/monitoring"
	"github.com/apiforge/forge/backend/internal/logging"
	"github.com/apiforge/forge/backend/internal/script"
	"github.com/apiforge/forge/backend/internal/script/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // the desktop shell is the only client
	},
}

// Handler upgrades connections and runs script messages through the engine.
type Handler struct {
	engine  *engine.Engine
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a WebSocket handler. metrics may be nil.
func NewHandler(eng *engine.Engine, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{engine: eng, log: log, metrics: metrics}
}

// clientMessage is one inbound frame.
type clientMessage struct {
	ID     string       `json:"id,omitempty"`
	Type   string       `json:"type"`
	Script string       `json:"script,omitempty"`
	Phase  script.Phase `json:"phase,omitempty"`

	Request             script.RequestSnapshot   `json:"request"`
	Response            *script.ResponseSnapshot `json:"response,omitempty"`
	Environment         map[string]string        `json:"environment,omitempty"`
	Globals             map[string]string        `json:"globals,omitempty"`
	CollectionVariables map[string]string        `json:"collectionVariables,omitempty"`
}

// serverMessage is one outbound frame. A clean execution is a "result"
// frame; script failures and host failures are both "error" frames, the
// former still carrying whatever tests and console lines ran before the
// throw.
type serverMessage struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`

	Outcome            script.Outcome       `json:"outcome,omitempty"`
	Tests              []script.TestOutcome `json:"tests,omitempty"`
	Console            []string             `json:"consoleOutput,omitempty"`
	EnvironmentUpdates map[string]string    `json:"environmentUpdates,omitempty"`
	GlobalUpdates      map[string]string    `json:"globalUpdates,omitempty"`
	RequestUpdates     *script.RequestPatch `json:"requestUpdates,omitempty"`
}

// Handle is the GET /ws endpoint.
func (h *Handler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := uuid.New().String()
	log := h.log.With(zap.String("client_id", clientID))
	log.Info("websocket client connected")

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", zap.Error(err))
			}
			log.Info("websocket client disconnected")
			return
		}

		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues(msg.Type).Inc()
		}

		reply := h.handleMessage(c, &msg)
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (h *Handler) handleMessage(c *gin.Context, msg *clientMessage) *serverMessage {
	switch msg.Type {
	case "ping":
		return &serverMessage{ID: msg.ID, Type: "pong"}

	case "execute":
		job := &script.ExecutionJob{
			Phase:               msg.Phase,
			Request:             msg.Request,
			Response:            msg.Response,
			Environment:         msg.Environment,
			Globals:             msg.Globals,
			CollectionVariables: msg.CollectionVariables,
		}
		res, err := h.engine.Execute(c.Request.Context(), msg.Script, job)
		if err != nil {
			return &serverMessage{ID: msg.ID, Type: "error", Error: err.Error()}
		}
		typ := "result"
		if res.Outcome == script.OutcomeError {
			typ = "error"
		}
		return &serverMessage{
			ID:                 msg.ID,
			Type:               typ,
			Outcome:            res.Outcome,
			Error:              res.Error,
			Tests:              res.Tests,
			Console:            res.Console,
			EnvironmentUpdates: res.EnvironmentUpdates,
			GlobalUpdates:      res.GlobalUpdates,
			RequestUpdates:     res.RequestUpdates,
		}

	default:
		return &serverMessage{ID: msg.ID, Type: "error", Error: "unknown message type: " + msg.Type}
	}
}
