// Package overlay serves the lecture state to browser overlays: a websocket
// feed of session snapshots plus status, health and metrics endpoints.
package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tiroq/lectern/internal/diaglog"
	"github.com/tiroq/lectern/internal/logging"
	"github.com/tiroq/lectern/internal/session"
)

// Controller is the part of the lecture runner the overlay can drive.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
}

// Source supplies snapshots. *session.Machine satisfies it.
type Source interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
}

// History supplies recent warnings and errors. *logging.Logger satisfies it.
type History interface {
	Recent(limit int) []logging.Entry
}

// recentWarnings is how many log entries /status carries.
const recentWarnings = 10

// Status is the /status body.
type Status struct {
	session.Snapshot
	Warnings []logging.Entry `json:"warnings,omitempty"`
}

// Message is the websocket payload.
type Message struct {
	Type     string           `json:"type"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// Server is the overlay HTTP server.
type Server struct {
	addr     string
	source   Source
	control  Controller
	engine   *gin.Engine
	hub      *hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	diag     *diaglog.Logger
	history  History
	started  time.Time
}

// New builds the server. control may be nil, in which case the control
// endpoints answer 503.
func New(addr string, source Source, control Controller) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		addr:    addr,
		source:  source,
		control: control,
		engine:  gin.New(),
		hub:     newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  zerolog.Nop(),
		started: time.Now(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

// SetLogger sets the operational logger.
func (s *Server) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", diaglog.ComponentOverlay).Logger()
}

// SetDiag injects the diagnostic logger.
func (s *Server) SetDiag(l *diaglog.Logger) {
	s.diag = l
}

// SetHistory makes /status include the latest warnings and errors.
func (s *Server) SetHistory(h History) {
	s.history = h
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Clients returns the number of connected viewers.
func (s *Server) Clients() int {
	return s.hub.count()
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/ws", s.handleWS)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	api.POST("/start", s.handleStart)
	api.POST("/stop", s.handleStop)
}

// Watch forwards every snapshot to connected viewers until ctx is done.
func (s *Server) Watch(ctx context.Context) {
	ch, cancel := s.source.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if msg, err := encode(snap); err == nil {
				s.hub.broadcast(msg)
			}
		}
	}
}

// Run serves on the configured address and forwards snapshots until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go s.Watch(watchCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("overlay listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("overlay stopped")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"clients": s.hub.count(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	st := Status{Snapshot: s.source.Snapshot()}
	if s.history != nil {
		st.Warnings = s.history.Recent(recentWarnings)
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleStart(c *gin.Context) {
	if s.control == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "control disabled"})
		return
	}
	// The run outlives the request, so it must not inherit its context.
	if err := s.control.Start(context.Background()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.logCommand("start")
	c.JSON(http.StatusAccepted, s.source.Snapshot())
}

func (s *Server) handleStop(c *gin.Context) {
	if s.control == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "control disabled"})
		return
	}
	s.control.Stop()
	s.logCommand("stop")
	c.JSON(http.StatusOK, s.source.Snapshot())
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.hub.add(cl)
	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentOverlay,
		Event:     diaglog.EventOverlayClient,
		Reason:    "connected",
		Payload:   map[string]interface{}{"remote": c.ClientIP()},
	})

	// Registered first so no change is lost between this snapshot and the
	// next broadcast.
	if msg, err := encode(s.source.Snapshot()); err == nil {
		s.hub.send(cl, msg)
	}

	go cl.writePump()
	cl.readPump(func() {
		s.hub.remove(cl)
		s.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentOverlay,
			Event:     diaglog.EventOverlayClient,
			Reason:    "disconnected",
		})
	})
}

func (s *Server) logCommand(name string) {
	s.logger.Info().Str("command", name).Msg("overlay command")
	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentOverlay,
		Event:     diaglog.EventCommand,
		Reason:    name,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/healthz" {
			return
		}
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}

func encode(snap session.Snapshot) ([]byte, error) {
	return json.Marshal(Message{Type: "snapshot", Snapshot: snap})
}
