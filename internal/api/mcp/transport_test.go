package mcp_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/jplfaria/gem-flux-mcp/internal/api/mcp"
)

// TestStdioTransport verifies line framing: one response line per request,
// nothing for notifications or blank lines.
func TestStdioTransport(t *testing.T) {
	env := newTestEnv(t)

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"c","version":"1"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"list_models","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	}, "\n") + "\n"
	var out bytes.Buffer

	tr := mcp.NewStdioTransport(env.srv, strings.NewReader(in), &out, nil)
	require.NoError(t, tr.Serve(context.Background()))

	var ids []float64
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		assert.Nil(t, resp["error"])
		ids = append(ids, resp["id"].(float64))
	}
	assert.Equal(t, []float64{1, 2, 3}, ids)
}

func TestStdioTransport_CancelledContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	tr := mcp.NewStdioTransport(env.srv, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &out, nil)
	assert.ErrorIs(t, tr.Serve(ctx), context.Canceled)
	assert.Zero(t, out.Len())
}

// TestWebSocketHandler verifies that requests sent over one connection share
// the session and get correlated responses.
func TestWebSocketHandler(t *testing.T) {
	env := newTestEnv(t)
	handler := mcp.NewWebSocketHandler(env.srv, nil)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), nil) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)

	send := func(req string) map[string]interface{} {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(req)))
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &resp))
		return resp
	}

	resp := send(`{"jsonrpc":"2.0","id":"a","method":"build_media","params":{"compounds":["cpd00027"],"media_name":"ws_medium"}}`)
	assert.Equal(t, "a", resp["id"])
	require.Nil(t, resp["error"])
	assert.Equal(t, "ws_medium", resp["result"].(map[string]interface{})["media_id"])

	resp = send(`{"jsonrpc":"2.0","id":"b","method":"delete_media","params":{"media_id":"ws_medium"}}`)
	assert.Equal(t, "b", resp["id"])
	assert.Nil(t, resp["error"])
	assert.False(t, env.sess.Media.Has("ws_medium"))

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	handler.Wait()
}
