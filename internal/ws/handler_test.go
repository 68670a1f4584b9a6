package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiforge/forge/backend/internal/logging"
	"github.com/apiforge/forge/backend/internal/script"
	"github.com/apiforge/forge/backend/internal/script/engine"
)

func dialTestServer(t *testing.T) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logging.NewNop()
	eng := engine.New(engine.DefaultConfig(), log, nil)
	t.Cleanup(func() { eng.Close() })

	router := gin.New()
	router.GET("/ws", NewHandler(eng, log, nil).Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	return conn
}

func TestPingPong(t *testing.T) {
	conn := dialTestServer(t)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"id": "m1", "type": "ping"}))

	var reply serverMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "m1", reply.ID)
	assert.Equal(t, "pong", reply.Type)
}

func TestExecuteMessage(t *testing.T) {
	conn := dialTestServer(t)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"id":     "m2",
		"type":   "execute",
		"phase":  "test",
		"script": `pm.test('status', function() { pm.response.to.have.status(200); }); console.log('done');`,
		"request": map[string]interface{}{
			"url":    "https://api.example.com",
			"method": "GET",
		},
		"response": map[string]interface{}{
			"code":   200,
			"status": "200 OK",
		},
	}))

	var reply serverMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "m2", reply.ID)
	require.Equal(t, "result", reply.Type)
	assert.Equal(t, script.OutcomeOK, reply.Outcome)
	require.Len(t, reply.Tests, 1)
	assert.True(t, reply.Tests[0].Passed)
	assert.Equal(t, []string{"[LOG] done"}, reply.Console)
}

func TestExecuteMessageWithBadPhase(t *testing.T) {
	conn := dialTestServer(t)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"id":     "m3",
		"type":   "execute",
		"phase":  "warmup",
		"script": "1",
	}))

	var reply serverMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Error, "invalid script phase")
}

func TestScriptFailureIsErrorFrameWithPartialState(t *testing.T) {
	conn := dialTestServer(t)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"id":     "m4",
		"type":   "execute",
		"phase":  "pre-request",
		"script": `pm.test('ran', function() {}); throw new Error('boom');`,
	}))

	var reply serverMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, script.OutcomeError, reply.Outcome)
	assert.Contains(t, reply.Error, "boom")
	require.Len(t, reply.Tests, 1)
	assert.True(t, reply.Tests[0].Passed)
}

func TestUnknownMessageType(t *testing.T) {
	conn := dialTestServer(t)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "subscribe"}))

	var reply serverMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Error, "unknown message type")
}
