package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/omochice/counsel-chat/internal/history"
	"github.com/omochice/counsel-chat/internal/log"
	"github.com/omochice/counsel-chat/internal/transport"
	"github.com/omochice/counsel-chat/pkg/stomp"
)

const defaultHistoryLimit = 50

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock sets the clock used to stamp delivered messages.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// Server serves the STOMP endpoint, conversation history and a health check.
type Server struct {
	hub      *Hub
	store    *Store
	engine   *gin.Engine
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New creates a Server with its routes registered.
func New(opts ...Option) *Server {
	s := &Server{
		hub:   NewHub(),
		store: NewStore(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: log.L(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str(log.FieldComponent, "relay").Logger()

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.logger))
	engine.GET(transport.DefaultPath, s.handleWebSocket)
	engine.GET(history.ConversationPath, s.handleHistory)
	engine.GET("/health", s.handleHealth)
	s.engine = engine

	return s
}

// Handler returns the HTTP handler, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub returns the subscription hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Store returns the message store.
func (s *Server) Store() *Store {
	return s.store
}

// Start listens on address and serves until Stop is called.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.server = &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info().Str("address", listener.Addr().String()).Msg("relay started")

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the HTTP server down. Hijacked WebSocket connections are left
// to their pumps.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(s.hub, conn, s.logger)
	s.hub.Register(client)
	client.logger.Info().Msg("client connected")

	go client.writePump()
	go client.readPump(s.handleFrame)
}

func (s *Server) handleHistory(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, stomp.ErrorPayload{Message: "userId is required"})
		return
	}
	counselorID, err := strconv.ParseInt(c.Query("counselorId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, stomp.ErrorPayload{Message: "counselorId is required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, stomp.ErrorPayload{Message: "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, stomp.ErrorPayload{Message: "invalid offset"})
		return
	}

	c.JSON(http.StatusOK, s.store.Conversation(userID, counselorID, limit, offset))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}
