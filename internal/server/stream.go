package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/desertthunder/trackx/internal/tasks"
)

const (
	streamBuffer = 64
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is one frame on the search stream.
//
// Progress frames carry phase, step, total and message. The final frame is either
// "result" with the search body or "error" with the failure.
type StreamMessage struct {
	Type    string          `json:"type"`
	Phase   string          `json:"phase,omitempty"`
	Step    int             `json:"step,omitempty"`
	Total   int             `json:"total,omitempty"`
	Message string          `json:"message,omitempty"`
	Result  *SearchResponse `json:"result,omitempty"`
	Error   *ErrorResponse  `json:"error,omitempty"`
}

// StreamHandler runs a search over a WebSocket and pushes progress as it happens.
// Closing the socket cancels the search.
type StreamHandler struct {
	server *Server
}

// Routes implements [Handler].
func (h *StreamHandler) Routes() []string {
	return []string{"/search/stream"}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.server.logger
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing query parameter q"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// A hijacked connection never cancels the request context, so the reader
	// goroutine cancels the run when the client goes away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	type outcome struct {
		result *tasks.AggregateResult
		err    error
	}

	progress := make(chan tasks.ProgressUpdate, streamBuffer)
	done := make(chan outcome, 1)
	go func() {
		result, err := h.server.run(ctx, query, progress)
		done <- outcome{result, err}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case update := <-progress:
			if err := h.write(conn, progressMessage(update)); err != nil {
				logger.Debug("stream write failed", "error", err)
				return
			}
		case out := <-done:
		drain:
			for {
				select {
				case update := <-progress:
					if err := h.write(conn, progressMessage(update)); err != nil {
						return
					}
				default:
					break drain
				}
			}

			if err := h.write(conn, finalMessage(query, out.result, out.err)); err != nil {
				logger.Debug("stream write failed", "error", err)
				return
			}
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
				time.Now().Add(writeTimeout),
			)
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, msg StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

func progressMessage(u tasks.ProgressUpdate) StreamMessage {
	return StreamMessage{
		Type:    "progress",
		Phase:   u.Phase.String(),
		Step:    u.Step,
		Total:   u.Total,
		Message: u.Message,
	}
}

func finalMessage(query string, result *tasks.AggregateResult, err error) StreamMessage {
	_, body := searchBody(query, result, err)
	switch b := body.(type) {
	case SearchResponse:
		return StreamMessage{Type: "result", Result: &b}
	case ErrorResponse:
		return StreamMessage{Type: "error", Error: &b}
	default:
		return StreamMessage{Type: "error", Error: &ErrorResponse{Error: "unexpected response"}}
	}
}
