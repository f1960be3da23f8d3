// Package httpapi serves the ingress endpoints: POST /notify, the health
// checks and, when enabled, /metrics.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"relaybot/internal/metrics"
	"relaybot/internal/notifier"
	"relaybot/internal/severity"
	"relaybot/internal/status"
	logx "relaybot/pkg/logx"
)

const (
	msgMissingMessage = "Content must have message field"
	msgWorking        = "WORKING"
	shutdownTimeout   = 5 * time.Second
)

// Dispatcher is the notifier capability behind POST /notify.
type Dispatcher interface {
	Dispatch(ctx context.Context, message string, sev severity.Level) (notifier.Report, error)
}

type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool

	DefaultSeverity severity.Level
	// Store and Transport back GET /healthcheck, checked in that order.
	Store     status.Probe
	Transport status.Probe
	// Metrics enables GET /metrics when non-nil.
	Metrics *metrics.Metrics
	// Pprof mounts the runtime profiles under /debug/pprof.
	Pprof bool
}

type Server struct {
	opts       Options
	dispatcher Dispatcher
	log        logx.Logger
	engine     *gin.Engine

	defaultSev atomic.Int64
}

type notifyRequest struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func New(opts Options, d Dispatcher, log logx.Logger) *Server {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		opts:       opts,
		dispatcher: d,
		log:        log.With(logx.String("comp", "http")),
		engine:     gin.New(),
	}
	s.SetDefaultSeverity(opts.DefaultSeverity)

	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.engine.POST("/notify", s.handleNotify)
	s.engine.GET("/healthcheck", s.handleHealth)
	s.engine.GET("/healthcheck/api", func(c *gin.Context) { c.String(http.StatusOK, msgWorking) })
	if opts.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	if opts.Pprof {
		mountPprof(s.engine)
	}
	return s
}

// SetDefaultSeverity changes the severity used when a request carries none.
// Invalid levels fall back to ERROR.
func (s *Server) SetDefaultSeverity(lvl severity.Level) {
	if !lvl.Valid() {
		lvl = severity.Error
	}
	s.defaultSev.Store(int64(lvl))
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleNotify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		s.reply(c, http.StatusBadRequest, msgMissingMessage)
		return
	}

	sev := severity.Level(s.defaultSev.Load())
	if raw := strings.TrimSpace(req.Severity); raw != "" {
		lvl, err := severity.ParseLoose(raw)
		if err != nil {
			s.reply(c, http.StatusBadRequest, err.Error())
			return
		}
		sev = lvl
	}

	rep, err := s.dispatcher.Dispatch(c.Request.Context(), req.Message, sev)
	if err != nil {
		s.log.Warn("notify failed",
			logx.String("severity", sev.String()),
			logx.Int("sent", len(rep.Sent)),
			logx.Err(err),
		)
		s.reply(c, http.StatusBadRequest, err.Error())
		return
	}
	s.reply(c, http.StatusCreated, "OK")
}

func (s *Server) reply(c *gin.Context, code int, body string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.Notifies.WithLabelValues(strconv.Itoa(code)).Inc()
	}
	c.String(code, "%s", body)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	for _, chk := range []struct {
		name  string
		probe status.Probe
	}{
		{"REDIS", s.opts.Store},
		{"SLACK", s.opts.Transport},
	} {
		if chk.probe == nil {
			continue
		}
		if r := chk.probe.Check(ctx); !r.OK {
			c.String(http.StatusInternalServerError, "WARNING - %s - %s", chk.name, r.Detail)
			return
		}
	}
	c.String(http.StatusOK, msgWorking)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			logx.String("method", c.Request.Method),
			logx.String("path", c.FullPath()),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("took", time.Since(start)),
		)
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.opts.Addr
	if addr == "" {
		addr = ":5000"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.opts.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("http listening", logx.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	return nil
}
