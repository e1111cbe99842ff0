package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"solvency/internal/config"
	"solvency/internal/domain"
	"solvency/internal/infra/logging"
	"solvency/internal/infra/metrics"
	"solvency/internal/usecase"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine
	log logrus.FieldLogger

	store    domain.ArtifactStore
	backend  string
	pipeline *usecase.Pipeline
	exporter *usecase.EpochExporter
	history  *usecase.PublicationHistory
	registry usecase.RegistryEvents
	sessions SessionSourceFactory
	metrics  *metrics.Recorder

	adminAPIKey string

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

// SessionSourceFactory builds the liability source for a coordinator session.
type SessionSourceFactory func(sessionID string) usecase.LiabilitySource

type ServerDeps struct {
	Store           domain.ArtifactStore
	ArtifactBackend string
	Pipeline        *usecase.Pipeline
	Exporter        *usecase.EpochExporter
	History         *usecase.PublicationHistory
	Registry        usecase.RegistryEvents
	Sessions        SessionSourceFactory
	Metrics         *metrics.Recorder
	RateLimiter     domain.RateLimiter
	Log             logrus.FieldLogger
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(log))

	s := &Server{
		cfg:               cfg,
		r:                 r,
		log:               log,
		store:             deps.Store,
		backend:           deps.ArtifactBackend,
		pipeline:          deps.Pipeline,
		exporter:          deps.Exporter,
		history:           deps.History,
		registry:          deps.Registry,
		sessions:          deps.Sessions,
		metrics:           deps.Metrics,
		adminAPIKey:       cfg.AdminAPIKey,
		rateLimiter:       deps.RateLimiter,
		rateLimitRequests: cfg.RateLimitRequests,
		rateLimitWindow:   cfg.RateLimitWindow(),
	}
	if s.exporter == nil && s.store != nil {
		s.exporter = usecase.NewEpochExporter(s.store)
	}
	if s.metrics != nil {
		r.Use(s.countRequests)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		backend := s.backend
		if backend == "" {
			backend = "unknown"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "artifacts": backend})
	})
	if s.metrics != nil {
		s.r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.r.Group("/v1", s.enforceRateLimit)
	{
		v1.GET("/epochs", s.handleListEpochs)
		v1.POST("/epochs", s.requireAdmin, s.handleExport)
		v1.GET("/epochs/latest", s.handleLatestEpoch)
		v1.GET("/epochs/:epoch", s.handleEpochInfo)
		v1.GET("/epochs/:epoch/artifacts", s.handleListArtifacts)
		v1.GET("/epochs/:epoch/artifacts/:name", s.handleGetArtifact)
		v1.POST("/epochs/:epoch/stages/:stage", s.requireAdmin, s.handleRunStage)
		v1.POST("/epochs/:epoch/run", s.requireAdmin, s.handleRun)
		v1.GET("/epochs/:epoch/inclusion/:address", s.handleInclusion)
		v1.POST("/inclusion/verify", s.handleVerifyInclusion)
		v1.GET("/epochs/:epoch/onchain", s.handleOnChain)
		v1.GET("/registry/latest", s.handleRegistryLatest)
		v1.GET("/history", s.handleHistory)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) countRequests(c *gin.Context) {
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	s.metrics.ObserveRequest(route, strconv.Itoa(c.Writer.Status()))
}

func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}
