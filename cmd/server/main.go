package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/tandemhq/tandem-api/internal/config"
	"github.com/tandemhq/tandem-api/internal/database"
	"github.com/tandemhq/tandem-api/internal/handlers"
	"github.com/tandemhq/tandem-api/internal/logger"
	"github.com/tandemhq/tandem-api/internal/middleware"
	"github.com/tandemhq/tandem-api/internal/queue"
	"github.com/tandemhq/tandem-api/internal/scheduler"
	"github.com/tandemhq/tandem-api/internal/services/insights"
	"github.com/tandemhq/tandem-api/internal/tasks"
	"github.com/tandemhq/tandem-api/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Duration("reminder_lead_time", cfg.ReminderLeadTime),
		zap.Duration("due_scan_interval", cfg.DueScanInterval),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// OpenTelemetry tracing, if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "tandem-api", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	// Redis backs the rate limiter
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_parse_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// Connect to RabbitMQ with exponential backoff; the broker often starts
	// slower than this process in compose setups
	jobQueue, err := connectQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	// Repositories
	taskRepo := database.NewTaskRepository(db)
	taskRepo.SetLogger(zapLogger)
	userRepo := database.NewUserRepository(db)
	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	lifecycle := tasks.NewLifecycle()

	var tipProvider insights.TipProvider
	if cfg.OpenAIKey != "" {
		tipProvider = insights.NewOpenAIProviderWithLogger(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debugMode)
	} else {
		zapLogger.Warn("openai_key_not_configured_tips_disabled")
	}

	// Handlers
	taskHandler := handlers.NewTaskHandler(taskRepo, lifecycle)
	insightsHandler := handlers.NewInsightsHandler(taskRepo, tipProvider)
	healthChecker := handlers.NewHealthChecker(db, jobQueue, redisClient)

	r := mux.NewRouter()

	zapLogger.Info("setting_up_middleware")
	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("tandem-api"))
		zapLogger.Info("otel_middleware_enabled")
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.FrontendURL, zapLogger, 1*time.Minute)
	r.Use(corsReloader.Middleware())
	rateLimitMW, err := middleware.RateLimitFromDB(redisClient, ratelimitConfigRepo, "5-S")
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")

	openAPIPath := filepath.Join("api", "openapi", "openapi.yaml")
	openAPIHandler := handlers.NewOpenAPIHandler(openAPIPath)
	openAPIHandler.RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	authMW := middleware.Auth(db, []byte(cfg.JWTSecret), cfg.JWTIssuer)

	tasksRouter := apiRouter.PathPrefix("/tasks").Subrouter()
	tasksRouter.Use(authMW)
	tasksRouter.Use(rateLimitMW)
	taskHandler.RegisterRoutes(tasksRouter)

	insightsRouter := apiRouter.PathPrefix("/insights").Subrouter()
	insightsRouter.Use(authMW)
	insightsRouter.Use(rateLimitMW)
	insightsHandler.RegisterRoutes(insightsRouter)

	// Catch-all OPTIONS handler so preflight requests succeed on every route
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go corsReloader.Start(bgCtx)

	// Periodic jobs: due scans on an interval, tips once a day
	sched := scheduler.New(time.UTC)
	if _, err := sched.ScheduleInterval(cfg.DueScanInterval, func() {
		enqueueDueScan(bgCtx, jobQueue, zapLogger)
	}); err != nil {
		zapLogger.Fatal("failed_to_schedule_due_scan", zap.Error(err))
	}
	if _, err := sched.ScheduleDaily(8, 0, func() {
		enqueueDailyTips(bgCtx, jobQueue, userRepo, zapLogger)
	}); err != nil {
		zapLogger.Fatal("failed_to_schedule_daily_tips", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	// DLQ garbage collection: hourly sweep, 24h retention
	if dlqPurger, ok := jobQueue.(queue.DLQPurger); ok {
		dlqGC := queue.NewGarbageCollector(dlqPurger, 1*time.Hour, 24*time.Hour, zapLogger)
		go func() {
			if err := dlqGC.Start(bgCtx); err != nil && err != context.Canceled {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", 1*time.Hour),
			zap.Duration("retention", 24*time.Hour),
		)
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectQueue dials RabbitMQ with retries and exponential backoff.
func connectQueue(amqpURL string, zapLogger *zap.Logger) (queue.JobQueue, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		jobQueue, err := queue.NewRabbitMQQueue(amqpURL)
		if err == nil {
			return jobQueue, nil
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}
	return nil, lastErr
}

func enqueueDueScan(ctx context.Context, jobQueue queue.JobQueue, zapLogger *zap.Logger) {
	job := queue.NewJob(queue.JobTypeDueScan, uuid.Nil, nil)
	if err := jobQueue.Enqueue(ctx, job); err != nil {
		zapLogger.Error("failed_to_enqueue_due_scan_job", zap.Error(err))
		return
	}
	zapLogger.Debug("enqueued_due_scan_job", zap.String("job_id", job.ID.String()))
}

// enqueueDailyTips fans out one daily-tip job per household. For a linked
// couple only the member with the smaller UUID gets the job; the worker
// notifies both partners.
func enqueueDailyTips(ctx context.Context, jobQueue queue.JobQueue, userRepo *database.UserRepository, zapLogger *zap.Logger) {
	users, err := userRepo.List(ctx)
	if err != nil {
		zapLogger.Error("failed_to_list_users_for_daily_tips", zap.Error(err))
		return
	}

	enqueued := 0
	for _, user := range users {
		if user.PartnerID != nil && user.ID.String() > user.PartnerID.String() {
			continue
		}
		job := queue.NewJob(queue.JobTypeDailyTip, user.ID, nil)
		if err := jobQueue.Enqueue(ctx, job); err != nil {
			zapLogger.Error("failed_to_enqueue_daily_tip_job",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
			continue
		}
		enqueued++
	}
	zapLogger.Info("enqueued_daily_tip_jobs", zap.Int("count", enqueued), zap.Int("users", len(users)))
}
