// Package gateway serves avatar devices over websocket: each device
// connection holds one conversation, sends user turns up and receives
// the decoded response stream back as delta frames followed by a final
// frame. The gateway also exposes the engine's Prometheus metrics and
// a health endpoint.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mirubo/pixpal/pkg/convo"
	"github.com/mirubo/pixpal/pkg/talk"
)

// Frame types of the device protocol.
const (
	FrameUserTurn = "user_turn"
	FrameDelta    = "delta"
	FrameTags     = "tags"
	FrameFuncCall = "function_call"
	FrameFinal    = "final"
	FrameError    = "error"
)

// Frame is one wire message, either direction.
type Frame struct {
	Type   string            `json:"type"`
	Text   string            `json:"text,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
	Name   string            `json:"name,omitempty"`
	Args   string            `json:"args,omitempty"`
	Reason string            `json:"reason,omitempty"`
}

const writeWait = 10 * time.Second

// Gateway relays device turns into the engine and streams the decoded
// response back.
type Gateway struct {
	engine   *talk.Engine
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway's logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) {
		g.log = log
	}
}

// New creates a gateway in front of engine.
func New(engine *talk.Engine, opts ...Option) *Gateway {
	g := &Gateway{
		engine: engine,
		log:    slog.Default(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handler returns the gateway's routes: /chat for devices, /healthz
// and /metrics for operators.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", g.handleChat)
	mux.HandleFunc("/healthz", g.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve runs the gateway until ctx is canceled.
func (g *Gateway) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: g.Handler()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	g.log.Info("gateway: listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": g.engine.ActiveSessions(),
	})
}

func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("gateway: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	conn := &deviceConn{ws: ws}
	defer ws.Close()

	conversation := uuid.New().String()
	g.log.Info("gateway: device connected", "remote", r.RemoteAddr, "conversation", conversation)

	var history []*convo.Message
	for {
		var f Frame
		if err := ws.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.log.Warn("gateway: device read failed", "conversation", conversation, "err", err)
			}
			return
		}
		if f.Type != FrameUserTurn || strings.TrimSpace(f.Text) == "" {
			conn.write(&Frame{Type: FrameError, Reason: "bad frame: want user_turn with text"})
			continue
		}

		history = append(history, convo.NewText(convo.RoleUser, f.Text))
		out, err := g.engine.Converse(r.Context(), history,
			talk.WithConversation(conversation),
			talk.WithDeltas(func(delta string) {
				conn.write(&Frame{Type: FrameDelta, Text: delta})
			}),
		)
		if out != nil {
			history = append(history, out.Messages...)
		}
		if err != nil {
			conn.write(&Frame{Type: FrameError, Reason: failReason(err)})
			continue
		}

		if tags := talk.ExtractTags(out.Text); len(tags) > 0 {
			conn.write(&Frame{Type: FrameTags, Tags: tags})
		}
		if out.Kind == talk.KindFuncCall {
			conn.write(&Frame{Type: FrameFuncCall, Name: out.FuncCall.Name, Args: out.FuncCall.Arguments})
			continue
		}
		conn.write(&Frame{Type: FrameFinal, Text: talk.StripTags(out.Text)})
	}
}

func failReason(err error) string {
	var f *talk.Failure
	if errors.As(err, &f) {
		return f.Reason.String()
	}
	return "transport"
}

// deviceConn serializes frame writes; deltas arrive from the delivery
// goroutine while final frames come from the handler.
type deviceConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *deviceConn) write(f *Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(f); err != nil {
		// The read loop notices the dead conn and exits.
		return
	}
}
