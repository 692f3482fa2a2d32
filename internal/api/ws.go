package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/matchline/internal/chat"
	"github.com/lalith-99/matchline/internal/middleware"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 8 << 10
	outboundBuffer = 32
)

// Server frame types.
const (
	frameState      = "state"
	frameReady      = "ready"
	frameMessage    = "message"
	frameTyping     = "typing"
	frameSendFailed = "send_failed"
	frameError      = "error"
)

// Client frame types.
const (
	frameSend = "send"
	frameOpen = "open"
)

type serverFrame struct {
	Type          string           `json:"type"`
	State         chat.State       `json:"state,omitempty"`
	CounterpartID string           `json:"counterpart_id,omitempty"`
	Channel       *chat.ChannelRef `json:"channel,omitempty"`
	Messages      []chat.Message   `json:"messages,omitempty"`
	Message       *chat.Message    `json:"message,omitempty"`
	UserID        string           `json:"user_id,omitempty"`
	Text          string           `json:"text,omitempty"`
	Error         string           `json:"error,omitempty"`
	Redirect      string           `json:"redirect,omitempty"`
}

type clientFrame struct {
	Type          string `json:"type"`
	Text          string `json:"text,omitempty"`
	CounterpartID string `json:"counterpart_id,omitempty"`
}

// SocketHandler runs a conversation view over a WebSocket. Each socket
// owns one chat.View; the goroutine in Serve is the only one touching
// the mounted session.
type SocketHandler struct {
	opener   chat.SessionOpener
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewSocketHandler(opener chat.SessionOpener, logger *zap.Logger) *SocketHandler {
	return &SocketHandler{
		opener: opener,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Serve handles GET /v1/matches/:userId/ws
func (h *SocketHandler) Serve(c *gin.Context) {
	counterpartID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	userID := middleware.GetUserID(c)
	logger := middleware.Logger(c, h.logger).With(zap.Stringer("user_id", userID))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sock := &socket{
		conn:     conn,
		inbound:  make(chan clientFrame),
		outbound: make(chan serverFrame, outboundBuffer),
		done:     ctx.Done(),
		logger:   logger,
	}
	go sock.writePump()
	go sock.readPump(cancel)

	view := chat.NewView(h.opener, userID, logger)
	defer view.Unmount()

	r := &socketRun{sock: sock, view: view, logger: logger}
	r.mount(ctx, counterpartID)
	r.loop(ctx)
}

// socketRun is the per-socket event loop.
type socketRun struct {
	sock   *socket
	view   *chat.View
	sess   *chat.Session
	logger *zap.Logger
}

func (r *socketRun) loop(ctx context.Context) {
	for {
		var events <-chan chat.Event
		if r.sess != nil {
			events = r.sess.Events()
		}

		select {
		case <-ctx.Done():
			return

		case f, ok := <-r.sock.inbound:
			if !ok {
				return
			}
			r.handleFrame(ctx, f)

		case ev, ok := <-events:
			if !ok {
				r.logger.Warn("chat subscription ended")
				r.view.Unmount()
				r.sess = nil
				r.sock.send(serverFrame{
					Type:     frameError,
					Error:    "chat connection lost",
					Redirect: chat.RedirectConversations,
				})
				continue
			}
			r.handleEvent(ev)
		}
	}
}

// mount switches the socket to counterpartID. The previous session is
// disconnected before the new one starts.
func (r *socketRun) mount(ctx context.Context, counterpartID uuid.UUID) {
	r.sess = nil
	sess, err := r.view.Mount(ctx, counterpartID, func(s chat.State) {
		r.sock.send(serverFrame{Type: frameState, State: s, CounterpartID: counterpartID.String()})
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.sock.send(serverFrame{
			Type:          frameError,
			CounterpartID: counterpartID.String(),
			Error:         chatErrorMessage(err),
			Redirect:      chat.RedirectFor(err),
		})
		return
	}

	r.sess = sess
	ref := sess.Channel()
	r.sock.send(serverFrame{
		Type:          frameReady,
		CounterpartID: counterpartID.String(),
		Channel:       &ref,
		Messages:      sess.Messages(),
	})
}

func (r *socketRun) handleFrame(ctx context.Context, f clientFrame) {
	switch f.Type {
	case frameSend:
		if r.sess == nil {
			r.sock.send(serverFrame{Type: frameSendFailed, Text: f.Text, Error: chat.ErrNotReady.Error()})
			return
		}
		m, err := r.sess.Send(ctx, f.Text)
		if err != nil {
			var sendErr *chat.SendError
			text := f.Text
			if errors.As(err, &sendErr) {
				text = sendErr.Text
			}
			r.sock.send(serverFrame{Type: frameSendFailed, Text: text, Error: sendFailure(err)})
			return
		}
		r.sock.send(serverFrame{Type: frameMessage, Message: &m})

	case frameTyping:
		if r.sess != nil {
			r.sess.Typing()
		}

	case frameOpen:
		id, err := uuid.Parse(f.CounterpartID)
		if err != nil {
			r.sock.send(serverFrame{Type: frameError, Error: "invalid counterpart id"})
			return
		}
		r.mount(ctx, id)

	default:
		r.sock.send(serverFrame{Type: frameError, Error: "unknown frame type " + f.Type})
	}
}

func (r *socketRun) handleEvent(ev chat.Event) {
	switch ev.Type {
	case chat.EventTypingStart:
		if ev.Channel == r.sess.Channel() && ev.UserID != r.sess.LocalUserID() {
			r.sock.send(serverFrame{Type: frameTyping, UserID: ev.UserID})
		}
	case chat.EventMessageNew:
		if m, added := r.sess.Apply(ev); added {
			r.sock.send(serverFrame{Type: frameMessage, Message: &m})
		}
	}
}

func sendFailure(err error) string {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return "message is empty"
	case errors.Is(err, chat.ErrNotReady):
		return "chat is not ready"
	default:
		return "failed to send message"
	}
}

// socket owns the connection's two pumps. Only writePump writes to conn.
type socket struct {
	conn     *websocket.Conn
	inbound  chan clientFrame
	outbound chan serverFrame
	done     <-chan struct{}
	logger   *zap.Logger
}

// send queues a frame unless the socket is shutting down.
func (s *socket) send(f serverFrame) {
	select {
	case s.outbound <- f:
	case <-s.done:
	}
}

func (s *socket) readPump(stop context.CancelFunc) {
	defer func() {
		stop()
		close(s.inbound)
	}()

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info("websocket read failed", zap.Error(err))
			}
			return
		}

		var f clientFrame
		if err := json.Unmarshal(payload, &f); err != nil {
			s.send(serverFrame{Type: frameError, Error: "malformed frame"})
			continue
		}
		select {
		case s.inbound <- f:
		case <-s.done:
			return
		}
	}
}

func (s *socket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case f := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
