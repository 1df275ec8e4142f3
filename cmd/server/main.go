package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/estatehub/backend/internal/config"
	"github.com/estatehub/backend/internal/database"
	"github.com/estatehub/backend/internal/filestore"
	"github.com/estatehub/backend/internal/handlers"
	"github.com/estatehub/backend/internal/jobs"
	"github.com/estatehub/backend/internal/metrics"
	"github.com/estatehub/backend/internal/middleware"
	"github.com/estatehub/backend/internal/queue"
	"github.com/estatehub/backend/internal/routes"
	"github.com/estatehub/backend/internal/services/kyc"
	"github.com/estatehub/backend/internal/store"
	"github.com/estatehub/backend/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

type stores struct {
	documents store.DocumentStore
	accounts  store.AccountStore
	history   store.HistoryStore
	orphans   store.OrphanStore
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	healthChecks := map[string]handlers.Checker{}

	// Record stores
	var db *gorm.DB
	var st stores
	switch cfg.StoreDriver {
	case "memory":
		log.Println("Using in-memory record store")
		st = stores{
			documents: store.NewMemoryDocumentStore(),
			accounts:  store.NewMemoryAccountStore(),
			history:   store.NewMemoryHistoryStore(),
			orphans:   store.NewMemoryOrphanStore(),
		}
	default:
		var err error
		db, err = database.InitDB(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		st = stores{
			documents: store.NewGormDocumentStore(db),
			accounts:  store.NewGormAccountStore(db),
			history:   store.NewGormHistoryStore(db),
			orphans:   store.NewGormOrphanStore(db),
		}
		healthChecks["database"] = func(ctx context.Context) error { return database.Ping(db) }
	}

	files, err := filestore.NewLocalStore(cfg.Storage.DataDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize file store: %v", err)
	}

	// Redis-backed cleanup queue; without it cleanups run inline
	redisQueue := connectQueue(cfg.Redis)
	cleanupOpts := jobs.FileCleanupOptions{
		MaxRetries: cfg.Worker.MaxRetries,
		Delay:      time.Duration(cfg.Worker.CleanupDelaySeconds) * time.Second,
	}
	var fileCleanup *jobs.FileCleanupJob
	var statsSource handlers.StatsSource
	if redisQueue != nil {
		fileCleanup = jobs.NewFileCleanupJob(redisQueue, st.orphans, files, cleanupOpts)
		statsSource = redisQueue
		healthChecks["redis"] = redisQueue.Ping
	} else {
		fileCleanup = jobs.NewFileCleanupJob(nil, st.orphans, files, cleanupOpts)
	}

	kycService := kyc.NewService(kyc.Dependencies{
		Documents: st.documents,
		Accounts:  st.accounts,
		History:   st.history,
		Orphans:   st.orphans,
		Files:     files,
		Cleanup:   fileCleanup,
		Bucket:    cfg.Storage.Bucket,
	})

	ctx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()

	var workers []*queue.Worker
	if redisQueue != nil {
		workers = jobs.RegisterAllJobHandlers(redisQueue, fileCleanup, cfg.Worker.Concurrency)
		for _, w := range workers {
			w.Start(ctx)
		}
	}

	sweeper := jobs.NewOrphanSweeper(
		st.orphans,
		fileCleanup,
		time.Duration(cfg.Worker.SweepIntervalMinutes)*time.Minute,
		time.Duration(cfg.Worker.OrphanGraceMinutes)*time.Minute,
	)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("Failed to start orphan sweeper: %v", err)
	}

	issuer := utils.NewTokenIssuer(cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Hour)
	rateLimiter := middleware.NewRateLimiter(
		cfg.Security.IPRateLimit,
		cfg.Security.IPRateBurst,
		time.Duration(cfg.Security.RateLimitCleanupMin)*time.Minute,
	)

	metrics.Init()

	router := gin.New()
	router.MaxMultipartMemory = int64(cfg.Storage.MaxUploadMB) << 20
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Security.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(metrics.GinMiddleware())
	router.Use(rateLimiter.IPRateLimiterMiddleware())

	routes.RegisterRoutes(router, routes.Handlers{
		KYC:    handlers.NewKYCHandler(kycService, cfg.Storage.MaxUploadMB),
		Admin:  handlers.NewKYCAdminHandler(kycService),
		Files:  handlers.NewFileHandler(files, kycService),
		Queue:  handlers.NewQueueHandler(statsSource),
		Health: handlers.NewHealthHandler(healthChecks),
	}, issuer)

	srv := startServer(router, cfg.Server)

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	sweeper.Stop()
	stopJobs()
	for _, w := range workers {
		w.Stop()
	}
	rateLimiter.Stop()
	if redisQueue != nil {
		if err := redisQueue.Close(); err != nil {
			log.Printf("Failed to close Redis client: %v", err)
		}
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	log.Println("Server exiting")
}

// connectQueue returns nil when Redis is disabled or unreachable
func connectQueue(cfg config.RedisConfig) *queue.RedisQueue {
	if cfg.Disabled {
		log.Println("Redis disabled, file cleanups run inline")
		return nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		log.Printf("Invalid REDIS_URL, file cleanups run inline: %v", err)
		return nil
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Failed to connect to Redis, file cleanups run inline: %v", err)
		client.Close()
		return nil
	}

	return queue.NewRedisQueue(client)
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, cfg config.ServerConfig) *http.Server {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Port)
	return srv
}
