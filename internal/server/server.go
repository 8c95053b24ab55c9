package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/ai"
	"github.com/coredesk/coredesk-gateway/internal/budget"
	"github.com/coredesk/coredesk-gateway/internal/circuitbreaker"
	"github.com/coredesk/coredesk-gateway/internal/config"
	"github.com/coredesk/coredesk-gateway/internal/counter"
	"github.com/coredesk/coredesk-gateway/internal/handler"
	"github.com/coredesk/coredesk-gateway/internal/ledger"
	"github.com/coredesk/coredesk-gateway/internal/middleware"
	"github.com/coredesk/coredesk-gateway/internal/models"
	"github.com/coredesk/coredesk-gateway/internal/ratelimit"
	"github.com/coredesk/coredesk-gateway/internal/repository"
	"github.com/coredesk/coredesk-gateway/internal/reset"
	"github.com/coredesk/coredesk-gateway/internal/service"
	"github.com/coredesk/coredesk-gateway/internal/storage"
	"github.com/gin-gonic/gin"
)

type Server struct {
	router     *gin.Engine
	config     *config.Config
	redis      *storage.RedisClient
	postgres   *storage.Postgres
	counters   counter.Store
	limiter    *ratelimit.Limiter
	enforcer   *budget.Enforcer
	ledger     *ledger.Ledger
	httpServer *http.Server
}

// New wires the admission-control stack. A nil redis client is allowed: the
// limiter then runs purely on the local counter store (single-instance
// enforcement) until a restart.
func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	registry, err := ratelimit.NewRegistry(cfg.RateLimits)
	if err != nil {
		return nil, err
	}

	local := counter.NewLocalStore()
	var counters counter.Store = local
	if redis != nil {
		counters = counter.NewFailoverStore(
			counter.NewRedisStore(redis),
			local,
			circuitbreaker.New(circuitbreaker.Config{}),
		)
	} else {
		log.Println("Rate limiting on local counters only (no Redis)")
	}

	limiter := ratelimit.NewLimiter(counters, registry)

	budgetRepo := repository.NewBudgetRepository(postgres)
	usageRepo := repository.NewUsageRepository(postgres)
	archiveRepo := repository.NewArchiveRepository(postgres)

	enforcer := budget.NewEnforcer(budgetRepo, cfg.AI.DefaultMonthlyBudget)
	usageLedger := ledger.New(usageRepo, 0)
	resetJob := reset.NewJob(budgetRepo, archiveRepo)
	analytics := service.NewUsageAnalyticsService(usageRepo, budgetRepo)

	provider := ai.NewHTTPProvider(cfg.AI.ProviderURL, time.Duration(cfg.AI.TimeoutSeconds)*time.Second)

	s := &Server{
		router:   router,
		config:   cfg,
		redis:    redis,
		postgres: postgres,
		counters: counters,
		limiter:  limiter,
		enforcer: enforcer,
		ledger:   usageLedger,
	}

	aiHandler := handler.NewAIHandler(provider, enforcer, usageLedger, cfg.AI.MaxTokensPerRequest)
	usageHandler := handler.NewUsageHandler(analytics, archiveRepo)
	settingsHandler := handler.NewSettingsHandler(budgetRepo, cfg.AI.DefaultMonthlyBudget)
	jobsHandler := handler.NewJobsHandler(resetJob, analytics, cfg.Jobs.UsageRetentionDays, cfg.Jobs.ResetToken)

	s.setupMiddleware()
	s.setupRoutes(aiHandler, usageHandler, settingsHandler, jobsHandler)

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
}

func (s *Server) setupRoutes(
	aiHandler *handler.AIHandler,
	usageHandler *handler.UsageHandler,
	settingsHandler *handler.SettingsHandler,
	jobsHandler *handler.JobsHandler,
) {
	s.router.GET("/health", s.healthCheck)

	auth := middleware.RequireAuth([]byte(s.config.JWT.Secret))

	// AI feature routes: rate limit -> feature toggle -> budget pre-flight,
	// then the handler performs the provider call and post-hoc debit
	aiGroup := s.router.Group("/api/v1/ai")
	aiGroup.Use(auth)
	aiGroup.Use(middleware.RateLimit(s.limiter, ratelimit.PresetAIHeavy))
	{
		aiGroup.POST("/chat",
			middleware.RequireFeature(s.enforcer, models.FeatureChat),
			middleware.RequireBudget(s.enforcer),
			aiHandler.Chat)
		aiGroup.POST("/generate",
			middleware.RequireFeature(s.enforcer, models.FeatureContentGeneration),
			middleware.RequireBudget(s.enforcer),
			aiHandler.Generate)
		aiGroup.POST("/insights",
			middleware.RequireFeature(s.enforcer, models.FeatureInsights),
			middleware.RequireBudget(s.enforcer),
			aiHandler.Insights)
	}

	admin := s.router.Group("/admin")
	admin.Use(auth)
	admin.Use(middleware.RequireAdmin())
	admin.Use(middleware.RateLimit(s.limiter, ratelimit.PresetAdmin))
	{
		admin.GET("/usage/summary", usageHandler.GetSummary)
		admin.GET("/usage/daily", usageHandler.GetDaily)
		admin.GET("/usage/archives", usageHandler.GetArchives)
		admin.GET("/settings/ai", settingsHandler.Get)
		admin.PUT("/settings/ai", settingsHandler.Update)
	}

	// Scheduler-facing, shared-secret auth inside the handler
	jobs := s.router.Group("/internal/jobs")
	{
		jobs.POST("/monthly-token-reset", jobsHandler.MonthlyTokenReset)
		jobs.POST("/usage-retention", jobsHandler.UsageRetention)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := s.redis != nil
	if s.redis != nil {
		if err := s.redis.Ping(c.Request.Context()); err != nil {
			redisHealthy = false
			log.Printf("Redis health check failed: %v", err)
		}
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	degraded := false
	if fs, ok := s.counters.(*counter.FailoverStore); ok {
		degraded = fs.Degraded()
	}

	status := "healthy"
	statusCode := http.StatusOK

	// Redis being down degrades rate limiting but the service keeps serving;
	// the database being down is fatal to the budget path
	if !dbHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	} else if !redisHealthy || degraded {
		status = "degraded"
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "coredesk-gateway",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":             redisHealthy,
			"database":          dbHealthy,
			"counters_degraded": degraded,
		},
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // AI provider calls can be slow
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting gateway on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	// Flush queued ledger writes before the process exits
	s.ledger.Close()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
