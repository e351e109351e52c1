package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"benritz/sheetsql/internal/dialect"
	"benritz/sheetsql/internal/schema"
)

// Introspector reads a catalog into table structures.
type Introspector interface {
	Introspect(ctx context.Context, params dialect.ConnectionParams) ([]schema.Table, error)
}

type Options struct {
	Addr           string
	AllowedOrigins []string
	// MaxUploadBytes bounds the generate-sql request body; zero means 32 MiB.
	MaxUploadBytes int64
	Logger         logrus.FieldLogger
	Now            func() time.Time
}

type Server struct {
	introspector Introspector
	logger       logrus.FieldLogger
	now          func() time.Time
	maxUpload    int64
}

// New builds the HTTP server serving the database API.
func New(opts Options, introspector Introspector) *http.Server {
	s := newServer(opts, introspector)
	return &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Router(opts.AllowedOrigins),
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
}

func newServer(opts Options, introspector Introspector) *Server {
	s := &Server{
		introspector: introspector,
		logger:       opts.Logger,
		now:          opts.Now,
		maxUpload:    opts.MaxUploadBytes,
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 32 << 20
	}
	return s
}

func (s *Server) Router(allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	corsConfig := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", func(c *gin.Context) {
		success(c, http.StatusOK, gin.H{"dialects": dialect.Registered()}, "ok")
	})

	api := router.Group("/api/database")
	{
		api.POST("/structure", s.structure)
		api.POST("/export", s.exportStructure)
		api.POST("/export-template", s.exportTemplate)
		api.POST("/generate-sql", s.generateSQL)
	}
	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		entry := s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(started),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}
