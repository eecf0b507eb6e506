package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/healthband/portal/libs/auth"
	"github.com/healthband/portal/libs/config"
	"github.com/healthband/portal/libs/db"
	"github.com/healthband/portal/libs/httpx"
	"github.com/healthband/portal/libs/kafkax"
	otelx "github.com/healthband/portal/libs/otel"
	"github.com/healthband/portal/libs/runtime"
	"github.com/healthband/portal/services/portal-service/internal/booking"
	"github.com/healthband/portal/services/portal-service/internal/consumer"
	"github.com/healthband/portal/services/portal-service/internal/handlers"
	"github.com/healthband/portal/services/portal-service/internal/inbox"
	"github.com/healthband/portal/services/portal-service/internal/outbox"
	"github.com/healthband/portal/services/portal-service/internal/refunds"
	"github.com/healthband/portal/services/portal-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "portal-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	var jwksClient *auth.JWKSClient
	if jwksURL := strings.TrimSpace(config.String("JWKS_URL", "")); jwksURL != "" {
		ttl := time.Duration(config.Int("JWKS_TTL_SECONDS", 300)) * time.Second
		jwksClient = auth.NewJWKSClient(jwksURL, ttl)
		logger.Info("jwks verification enabled", "url", jwksURL)
	}

	repo := storage.NewRepository(pool)
	svc := booking.NewService(repo, logger)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outbox.NewRepository(pool), logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	if kafkaBrokers != "" {
		completionConsumer := consumer.New(logger, inbox.NewRepository(pool), repo, consumer.Config{
			Brokers: kafkaBrokers,
			GroupID: config.String("KAFKA_GROUP_ID", "portal-service"),
		})
		go completionConsumer.Run(ctx)
	}

	refundWorker := refunds.NewWorker(pool, repo, logger, refunds.Config{
		StripeSecretKey: config.String("STRIPE_SECRET_KEY", ""),
		BatchSize:       config.Int("REFUND_BATCH_SIZE", 50),
		AdvisoryLockKey: int64(config.Int("REFUND_LOCK_KEY", 0)),
	})
	go refundWorker.Run(ctx, time.Duration(config.Int("REFUND_INTERVAL_SECONDS", 60))*time.Second)

	apptHandler := handlers.NewAppointmentHandler(svc, repo, logger)
	apiMux := http.NewServeMux()
	apptHandler.Register(apiMux)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
	)
	mux.Handle("/api/v1/", handlers.RequireAuth(apiMux, jwtSecret, jwksClient))

	var rateLimitMW httpx.Middleware
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   strings.Split(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"), ","),
			AllowedHeaders:   strings.Split(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id"), ","),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("MAX_BODY_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10))*time.Second),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "portal")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
