package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/clipdeck/vidrank/internal/config"
	dbRedis "github.com/clipdeck/vidrank/internal/db/redis"
	"github.com/clipdeck/vidrank/internal/domain"
	logpkg "github.com/clipdeck/vidrank/internal/logger"
	"github.com/clipdeck/vidrank/internal/metrics"
	activityrepo "github.com/clipdeck/vidrank/internal/repository/activity"
	channelrepo "github.com/clipdeck/vidrank/internal/repository/channel"
	"github.com/clipdeck/vidrank/internal/repository/embcache"
	videorepo "github.com/clipdeck/vidrank/internal/repository/video"
	videoindexrepo "github.com/clipdeck/vidrank/internal/repository/videoindex"
	chiTransport "github.com/clipdeck/vidrank/internal/transport/chi"
	openaiEmb "github.com/clipdeck/vidrank/internal/transport/openai"
	embeddinguc "github.com/clipdeck/vidrank/internal/usecase/embedding"
	healthuc "github.com/clipdeck/vidrank/internal/usecase/health"
	indexeruc "github.com/clipdeck/vidrank/internal/usecase/indexer"
	recommenduc "github.com/clipdeck/vidrank/internal/usecase/recommend"
	searchuc "github.com/clipdeck/vidrank/internal/usecase/search"
	"github.com/clipdeck/vidrank/internal/version"
)

func main() {
	// Local overrides from .env, if present
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting vidrank API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Bool("index_enabled", cfg.Index.Enabled),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Store not ready", zap.Error(err))
	}
	logger.Info("Connected to store")

	// Register ranking metrics explicitly (no init())
	metrics.RegisterRankingMetrics()

	embedder, embedderHealth := buildEmbedder(cfg, store, logger)

	// Repositories
	prefix := cfg.Storage.KeyPrefix
	videos := videorepo.New(store, prefix)
	activity := activityrepo.New(store, prefix)
	channels := channelrepo.New(store, prefix)
	index := videoindexrepo.New(store, prefix, videoindexrepo.Options{
		VectorDim:       cfg.Embedding.Dimensions,
		HNSWM:           cfg.Index.HNSWM,
		HNSWEFConstruct: cfg.Index.HNSWEFConstruct,
	})

	// Usecase services
	embedTimeout := time.Duration(cfg.Embedding.TimeoutSec) * time.Second
	indexTimeout := time.Duration(cfg.Retrieval.IndexTimeoutSec) * time.Second
	searchSvc := searchuc.New(index, videos, channels, activity, embedder, cfg.Index.Enabled, searchuc.Limits{
		DefaultPageSize: cfg.Retrieval.DefaultPageSize,
		MaxPageSize:     cfg.Retrieval.MaxPageSize,
		EmbedTimeout:    embedTimeout,
		IndexTimeout:    indexTimeout,
	}, logger)
	profiles := recommenduc.NewProfileBuilder(activity, videos, embedder, embedTimeout, logger)
	recommendSvc := recommenduc.New(index, videos, profiles, cfg.Index.Enabled, recommenduc.Limits{
		DefaultPageSize: cfg.Retrieval.DefaultPageSize,
		MaxPageSize:     cfg.Retrieval.MaxPageSize,
		IndexTimeout:    indexTimeout,
	}, logger)
	indexerSvc := indexeruc.New(videos, index, channels, embedder, cfg.Index.Enabled, logger)

	var indexChecker healthuc.IndexChecker
	if cfg.Index.Enabled {
		indexChecker = index
	}
	healthSvc := healthuc.New(store, indexChecker, embedderHealth)

	if err := indexerSvc.EnsureIndex(ctx); err != nil {
		// Retrieval degrades to the fallback scorer until the index exists.
		logger.Warn("Failed to ensure search index", zap.Error(err))
	}

	server := chiTransport.NewServer(searchSvc, recommendSvc, indexerSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Gateway.
// The gateway normalizes vectors and guards the configured dimensionality.
// The base provider doubles as the health probe for the provider API.
func buildEmbedder(
	cfg config.Config, store *dbRedis.Store, logger *zap.Logger,
) (*embeddinguc.Gateway, domain.HealthChecker) {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, cfg.Storage.KeyPrefix, metrics.EmbeddingCacheTotal, logger)
	}

	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	return embeddinguc.NewGateway(embedder, cfg.Embedding.Dimensions, logger), base
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
