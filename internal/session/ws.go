package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options tunes the WebSocket side of an admitted session.
type Options struct {
	// WriteWait bounds a single write to the peer.
	WriteWait time.Duration
	// PongWait bounds the silence tolerated before the peer is presumed gone.
	PongWait time.Duration
	// MaxMessageSize limits one inbound question, in bytes.
	MaxMessageSize int64
}

func (o Options) withDefaults() Options {
	if o.WriteWait == 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait == 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageSize == 0 {
		o.MaxMessageSize = 8192
	}
	return o
}

// Handler upgrades incoming connections, runs them through registry admission
// and relays question/answer messages for admitted sessions.
type Handler struct {
	registry *Registry
	answerer Answerer
	logger   *zap.Logger
	opts     Options
	upgrader websocket.Upgrader
}

// NewHandler constructs the WebSocket session handler.
func NewHandler(registry *Registry, answerer Answerer, logger *zap.Logger, opts Options) *Handler {
	return &Handler{
		registry: registry,
		answerer: answerer,
		logger:   logger,
		opts:     opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Admission is gated on the session credential, not the Origin
			// header; the upload response is the only place the credential
			// ever appears.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the connection and attempts admission for sessionID. A
// refused credential gets a policy-violation close (1008) whose reason
// distinguishes "never authorized" from "already connected". An admitted
// connection is served until either side disconnects; ServeWS blocks for the
// lifetime of the session.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := &liveSession{
		id:       sessionID,
		conn:     conn,
		send:     make(chan string, 16),
		done:     make(chan struct{}),
		registry: h.registry,
		answerer: h.answerer,
		logger:   h.logger,
		opts:     h.opts,
	}

	if err := h.registry.Admit(sessionID, sess); err != nil {
		reason := "upload documents first"
		if errors.Is(err, ErrAlreadyAdmitted) {
			reason = "session already connected elsewhere"
		}
		h.logger.Warn("admission refused",
			zap.String("session_id", sessionID), zap.Error(err))

		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
		deadline := time.Now().Add(h.opts.WriteWait)
		conn.WriteControl(websocket.CloseMessage, msg, deadline) //nolint:errcheck
		conn.Close()
		return
	}

	h.logger.Info("session admitted", zap.String("session_id", sessionID))
	go sess.writePump()
	sess.readPump(r.Context())
}

// liveSession is one admitted credential-to-channel binding. readPump owns the
// connection's inbound side and the send channel; writePump owns the outbound
// side. Either pump exiting tears the whole session down.
type liveSession struct {
	id       string
	conn     *websocket.Conn
	send     chan string
	done     chan struct{}
	registry *Registry
	answerer Answerer
	logger   *zap.Logger
	opts     Options

	closeOnce sync.Once
}

// Close unblocks both pumps by closing the underlying connection. Safe to
// call from any goroutine, any number of times.
func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
	return nil
}

// readPump reads one question at a time, obtains its answer synchronously and
// enqueues it before reading the next question. That single-in-flight loop is
// what guarantees exactly one in-order reply per question.
func (s *liveSession) readPump(ctx context.Context) {
	defer func() {
		s.registry.Release(s.id)
		s.Close()
		close(s.send)
		s.logger.Info("session closed", zap.String("session_id", s.id))
	}()

	s.conn.SetReadLimit(s.opts.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error",
					zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}

		answer, err := s.answerer.Answer(ctx, s.id, string(message))
		if err != nil {
			s.logger.Error("answerer failed",
				zap.String("session_id", s.id), zap.Error(err))
			msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "failed to answer question")
			deadline := time.Now().Add(s.opts.WriteWait)
			s.conn.WriteControl(websocket.CloseMessage, msg, deadline) //nolint:errcheck
			return
		}

		select {
		case s.send <- answer:
		case <-s.done:
			return
		}
	}
}

// writePump drains the send channel in order and keeps the peer alive with
// pings. Any send failure is a disconnect trigger; nothing is retried.
func (s *liveSession) writePump() {
	pingPeriod := (s.opts.PongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(s.done)
		s.Close()
	}()

	for {
		select {
		case answer, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait)) //nolint:errcheck
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				s.conn.WriteMessage(websocket.CloseMessage, msg) //nolint:errcheck
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(answer)); err != nil {
				s.logger.Warn("websocket write error",
					zap.String("session_id", s.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait)) //nolint:errcheck
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
