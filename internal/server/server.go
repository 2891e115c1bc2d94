// Package server exposes the HTTP API: the sweep trigger, subscription
// registration, and the minimal task CRUD surface the web UI consumes.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"famplan/internal/config"
	"famplan/internal/family"
	"famplan/internal/push"
	"famplan/internal/reminder"
	"famplan/internal/store"
	logx "famplan/pkg/logx"
)

type Server struct {
	cfg    config.ServerConfig
	leads  config.ReminderConfig
	store  *store.Store
	orch   *reminder.Orchestrator
	push   *push.Transport
	roster *family.Roster
	log    logx.Logger
	engine *gin.Engine
	srv    *http.Server

	// triggerToken is hot-reloadable without restarting the listener.
	triggerToken atomic.Value // string
}

func New(cfg config.ServerConfig, leads config.ReminderConfig, st *store.Store, orch *reminder.Orchestrator, pt *push.Transport, roster *family.Roster, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:    cfg,
		leads:  leads,
		store:  st,
		orch:   orch,
		push:   pt,
		roster: roster,
		log:    log.With(logx.String("comp", "http")),
		engine: gin.New(),
	}
	s.triggerToken.Store(cfg.TriggerToken)

	s.engine.Use(gin.Recovery(), s.requestLog())
	if len(cfg.CORSOrigins) > 0 {
		cc := cors.DefaultConfig()
		cc.AllowOrigins = cfg.CORSOrigins
		cc.AllowHeaders = append(cc.AllowHeaders, "Authorization")
		s.engine.Use(cors.New(cc))
	} else {
		s.engine.Use(cors.Default())
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := s.engine.Group("/api")
	{
		api.POST("/reminders/run", s.requireTriggerToken(), s.runSweep)
		api.GET("/reminders/status", s.sweepStatus)

		api.POST("/subscriptions", s.upsertSubscription)
		api.DELETE("/subscriptions", s.deleteSubscription)
		api.GET("/subscriptions/vapid-key", s.vapidKey)

		api.POST("/tasks", s.createTask)
		api.GET("/tasks", s.listTasks)
		api.GET("/tasks/:id", s.getTask)
		api.PUT("/tasks/:id", s.updateTask)
		api.DELETE("/tasks/:id", s.deleteTask)
		api.POST("/tasks/:id/ack", s.ackTask)
	}
}

// SetTriggerToken swaps the expected bearer token on config reload.
func (s *Server) SetTriggerToken(token string) {
	s.triggerToken.Store(token)
}

// requireTriggerToken compares the Authorization bearer token against the
// configured shared secret. An empty configured token bypasses the check.
func (s *Server) requireTriggerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		want, _ := s.triggerToken.Load().(string)
		if strings.TrimSpace(want) == "" {
			c.Next()
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid trigger token"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("took", time.Since(start)),
		)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{Addr: s.cfg.Addr, Handler: s.engine}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", logx.Err(err))
		}
	}()
	s.log.Info("http server listening", logx.String("addr", s.cfg.Addr))
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	if s.srv == nil {
		return
	}
	shutdownCtx := ctx
	if shutdownCtx == nil {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("http shutdown error", logx.Err(err))
	}
}
