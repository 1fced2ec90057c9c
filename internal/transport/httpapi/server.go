// Package httpapi exposes the plan service to UI clients over REST.
//
// Read-heavy endpoints (day views, document links) are served from a
// small TTL cache that is flushed whenever the plan state changes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"

	"studyplan/internal/services/docstore"
	"studyplan/internal/services/plan"
	logx "studyplan/pkg/logx"
)

type Config struct {
	Enabled  bool
	Addr     string        // default ":8080"
	CacheTTL time.Duration // default 5m
}

type Server struct {
	log   logx.Logger
	cfg   Config
	plans *plan.Service
	docs  *docstore.Service // nil when docstore is disabled

	cache *gocache.Cache
	srv   *http.Server
}

func New(cfg Config, plans *plan.Service, docs *docstore.Service, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s := &Server{
		log:   log,
		cfg:   cfg,
		plans: plans,
		docs:  docs,
		cache: gocache.New(ttl, 2*ttl),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	s.routes(r)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// FlushCache drops all cached responses; wired to the plan service's
// change hook.
func (s *Server) FlushCache() { s.cache.Flush() }

func (s *Server) Start() {
	go func() {
		s.log.Info("http api listening", logx.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", logx.Err(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) routes(r *gin.Engine) {
	api := r.Group("/api/v1")

	api.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api.GET("/courses", s.listCourses)
	api.POST("/courses", s.createCourse)
	api.POST("/courses/:courseID/tasks", s.addTask)
	api.PATCH("/courses/:courseID/tasks/:taskID", s.updateTask)
	api.DELETE("/courses/:courseID/tasks/:taskID", s.removeTask)
	api.POST("/courses/:courseID/tasks/:taskID/approval", s.toggleApproval)
	api.POST("/courses/:courseID/tasks/:taskID/subtasks", s.addSubtask)
	api.PATCH("/courses/:courseID/tasks/:taskID/subtasks/:subtaskID", s.updateSubtask)
	api.DELETE("/courses/:courseID/tasks/:taskID/subtasks/:subtaskID", s.removeSubtask)

	api.POST("/tasks/approve-all", s.approveAll)
	api.GET("/tasks/approval", s.approvalStatus)

	api.GET("/schedule", s.getSchedule)
	api.POST("/schedule/auto", s.autoSchedule)
	api.POST("/schedule/manual", s.manualSchedule)

	api.GET("/availability", s.getAvailability)
	api.PUT("/availability", s.putAvailability)

	api.POST("/courses/:courseID/documents", s.uploadDocument)
	api.GET("/courses/:courseID/documents/:docID/url", s.documentURL)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			logx.String("method", c.Request.Method),
			logx.String("path", c.FullPath()),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("took", time.Since(start)))
	}
}
