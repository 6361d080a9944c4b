package capture

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/voicedrop/internal/logging"
	"github.com/dmitrijs2005/voicedrop/internal/netx"
)

// Control message types.
const (
	msgStream = "stream"
	msgEnd    = "end"
	msgDone   = "done"
	msgError  = "error"
)

type controlMessage struct {
	Type string `json:"type"`
	Meta Meta   `json:"meta"`
}

type doneMessage struct {
	Type  string `json:"type"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SessionResolver returns the email bound to the session of an upgrade
// request, if any.
type SessionResolver func(r *http.Request) (email string, ok bool)

type ServerOptions struct {
	MaxMessageBytes int64
	// StrictAuth refuses streams whose email differs from the session email.
	StrictAuth bool
	Resolve    SessionResolver
}

// Server accepts WebSocket connections that carry audio streams.
type Server struct {
	address  string
	recorder *Recorder
	opts     ServerOptions
	upgrader websocket.Upgrader
	logger   logging.Logger

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	closing bool

	// handlers counts serveWS calls still running, hijacked or not
	handlers sync.WaitGroup
}

func NewServer(addr string, rec *Recorder, opts ServerOptions, l logging.Logger) *Server {
	return &Server{
		address:  addr,
		recorder: rec,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 << 10,
			WriteBufferSize: 4 << 10,
			// the recording page is served from the HTTP address, a different origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: l.With("module", "stream_server"),
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// hijacked connections are not closed by http.Server.Shutdown
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping stream server...")
		s.closeAll()
	}()

	s.logger.Info(ctx, "Starting stream server", "address", s.address)

	err := netx.Serve(ctx, srv)

	// Serve has stopped accepting, so no handler can start after this
	s.closeAll()
	s.Wait()
	s.logger.Info(ctx, "Stream server stopped")

	return err
}

// Wait blocks until every connection handler has returned and its capture
// has been finalized.
func (s *Server) Wait() {
	s.handlers.Wait()
}

// track registers c for closeAll. It reports false once shutdown has begun.
func (s *Server) track(c *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for c := range s.conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.Close()
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	s.handlers.Add(1)
	defer s.handlers.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client
		s.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	if !s.track(conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	defer func() {
		s.untrack(conn)
		_ = conn.Close()
	}()

	sc := &streamConn{
		id:     uuid.NewString(),
		server: s,
		conn:   conn,
	}
	if s.opts.Resolve != nil {
		sc.sessionEmail, sc.hasSession = s.opts.Resolve(r)
	}
	sc.logger = s.logger.With("conn_id", sc.id)

	sc.logger.Info(r.Context(), "new connection")
	sc.serve(r.Context())
}

// streamConn is the per-connection state. All websocket writes happen on the
// serve goroutine.
type streamConn struct {
	id           string
	server       *Server
	conn         *websocket.Conn
	logger       logging.Logger
	sessionEmail string
	hasSession   bool

	current *Capture
}

func (c *streamConn) serve(ctx context.Context) {
	if n := c.server.opts.MaxMessageBytes; n > 0 {
		c.conn.SetReadLimit(n)
	}

	defer c.finish(Disconnected, false)

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn(ctx, "connection lost", "error", err)
			} else {
				c.logger.Info(ctx, "connection closed")
			}
			return
		}

		switch mt {
		case websocket.TextMessage:
			c.handleControl(ctx, data)
		case websocket.BinaryMessage:
			c.handleAudio(ctx, data)
		}
	}
}

func (c *streamConn) handleControl(ctx context.Context, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ctx, "malformed control message")
		return
	}

	switch msg.Type {
	case msgStream:
		c.startStream(ctx, msg.Meta)
	case msgEnd:
		if c.current == nil {
			c.sendError(ctx, "no active stream")
			return
		}
		c.finish(EndOfStream, true)
	default:
		c.sendError(ctx, "unknown message type")
	}
}

func (c *streamConn) startStream(ctx context.Context, meta Meta) {
	c.finish(Superseded, true)

	if !c.hasSession || c.sessionEmail != meta.SessionEmail {
		if c.server.opts.StrictAuth {
			c.logger.Warn(ctx, "stream refused, email does not match session",
				"stream_email", meta.SessionEmail, "session_email", c.sessionEmail)
			c.sendError(ctx, "stream owner does not match session")
			return
		}
		c.logger.Warn(ctx, "stream email not backed by session",
			"stream_email", meta.SessionEmail, "session_email", c.sessionEmail)
	}

	capture, err := c.server.recorder.Start(ctx, meta)
	if err != nil {
		c.logger.Warn(ctx, "stream refused", "email", meta.SessionEmail, "error", err)
		c.sendError(ctx, err.Error())
		return
	}

	c.logger.Info(ctx, "new stream (start recording)", "capture_id", capture.ID())
	c.current = capture
}

func (c *streamConn) handleAudio(ctx context.Context, data []byte) {
	if c.current == nil {
		c.sendError(ctx, "no active stream")
		return
	}

	if err := c.current.Write(ctx, data); err != nil {
		c.logger.Error(ctx, "capture write failed", "capture_id", c.current.ID(), "error", err)
		c.sendError(ctx, "write failed")
		c.finish(WriteFailed, false)
	}
}

// finish finalizes the active capture, if any, optionally telling the client.
func (c *streamConn) finish(reason EndReason, notify bool) {
	if c.current == nil {
		return
	}
	res := c.current.Finish(reason)
	c.current = nil

	if !notify {
		return
	}
	if res.Err != nil {
		c.sendError(context.Background(), "capture failed")
		return
	}
	c.send(context.Background(), doneMessage{Type: msgDone, Path: res.Path, Bytes: res.Bytes})
}

func (c *streamConn) sendError(ctx context.Context, msg string) {
	c.send(ctx, errorMessage{Type: msgError, Message: msg})
}

func (c *streamConn) send(ctx context.Context, v any) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(v); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug(ctx, "control message not delivered", "error", err)
	}
}
