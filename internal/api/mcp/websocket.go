package mcp

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
)

// WebSocketHandler serves JSON-RPC 2.0 over WebSocket: one text message per
// request and one per response. Requests on a connection are handled
// concurrently; responses carry the request id for correlation.
type WebSocketHandler struct {
	server         *Server
	logger         *zap.Logger
	originPatterns []string
	readLimit      int64

	wg sync.WaitGroup
}

// NewWebSocketHandler wraps srv. originPatterns are passed to
// websocket.AcceptOptions; empty allows same-origin requests only.
func NewWebSocketHandler(srv *Server, logger *zap.Logger, originPatterns ...string) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		server:         srv,
		logger:         logger.Named("websocket"),
		originPatterns: originPatterns,
		readLimit:      16 << 20,
	}
}

// ServeHTTP upgrades the request and serves the connection until the client
// goes away or the request context ends.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(h.readLimit)
	h.logger.Info("websocket client connected", zap.String("remote", r.RemoteAddr))

	h.wg.Add(1)
	defer h.wg.Done()
	err = h.serve(r.Context(), conn)

	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
		h.logger.Info("websocket client disconnected", zap.String("remote", r.RemoteAddr))
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	h.logger.Warn("websocket connection ended", zap.String("remote", r.RemoteAddr), zap.Error(err))
	_ = conn.Close(websocket.StatusInternalError, "connection error")
}

func (h *WebSocketHandler) serve(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	var (
		writeMu  sync.Mutex
		inflight sync.WaitGroup
	)
	defer inflight.Wait()
	defer cancel()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		inflight.Add(1)
		go func(data []byte) {
			defer inflight.Done()
			resp, err := h.server.HandleRequest(ctx, data)
			if err != nil {
				h.logger.Error("handler error", zap.Error(err))
				resp = internalErrorResponse(data, err)
			}
			if resp == nil {
				return
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := conn.Write(ctx, websocket.MessageText, resp); err != nil {
				h.logger.Warn("websocket write failed", zap.Error(err))
				cancel()
			}
		}(data)
	}
}

// Wait blocks until every connection served so far has closed.
func (h *WebSocketHandler) Wait() {
	h.wg.Wait()
}
