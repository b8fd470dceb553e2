package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/tunedeck/tunedeck/pkg/cache"
	"github.com/tunedeck/tunedeck/pkg/engine"
	"github.com/tunedeck/tunedeck/pkg/logging"
	"github.com/tunedeck/tunedeck/pkg/quota"
	"github.com/tunedeck/tunedeck/pkg/router"
	"github.com/tunedeck/tunedeck/pkg/strategy"
)

func main() {
	// Configuration from environment
	port := getEnv("PORT", "8080")
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	apiKey := getEnv("YOUTUBE_API_KEY", "")
	logLevel := getEnv("LOG_LEVEL", "info")
	logPretty := getEnv("LOG_PRETTY", "false") == "true"
	browserEnabled := getEnv("BROWSER_STRATEGY", "true") == "true"

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(logLevel),
		Pretty: logPretty,
		Output: os.Stderr,
	})

	ctx := context.Background()

	// Cache store: Redis when reachable, in-memory otherwise. A dead
	// Redis must not keep the service from starting.
	var store cache.Store
	redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", redisURL).Msg("Redis unreachable, using in-memory cache")
		store = cache.NewMemoryStore()
	} else {
		logger.Info().Str("addr", redisURL).Msg("Connected to Redis")
		store = cache.NewRedisStore(redisClient, logger)
	}

	ledger := quota.NewLedger(quota.DefaultConfig(), logger)

	strategies := buildStrategies(ctx, apiKey, browserEnabled, logger)
	if len(strategies) == 0 {
		logger.Fatal().Msg("No resolution strategy available")
	}

	r, err := router.NewRouter(store, ledger, router.Config{Strategies: strategies}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create router")
	}

	eng := engine.New(r, ledger, logger)

	addr := ":" + port
	logger.Info().Str("addr", addr).Int("strategies", len(strategies)).Msg("Starting server")
	if err := http.ListenAndServe(addr, newMux(eng)); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// buildStrategies assembles the fallback chain in priority order. The
// official API needs a key; the browser can be switched off on hosts
// without Chrome.
func buildStrategies(ctx context.Context, apiKey string, browserEnabled bool, logger zerolog.Logger) []strategy.Strategy {
	var strategies []strategy.Strategy

	if apiKey != "" {
		svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			logger.Warn().Err(err).Msg("Official API unavailable, continuing without it")
		} else {
			strategies = append(strategies, strategy.NewDirectAPI(svc, logger))
		}
	} else {
		logger.Warn().Msg("YOUTUBE_API_KEY not set, official API strategy disabled")
	}

	strategies = append(strategies, strategy.NewHeadless(nil, logger))

	if browserEnabled {
		strategies = append(strategies, strategy.NewBrowser(strategy.DefaultBrowserConfig(), logger))
	}

	return strategies
}

func newMux(eng *engine.Engine) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("GET /stats", statsHandler(eng))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/music/search", searchHandler(eng))
	mux.HandleFunc("GET /api/v1/music/song/{id}", songHandler(eng))
	mux.HandleFunc("GET /api/v1/music/stream/{id}", streamHandler(eng))
	mux.HandleFunc("GET /api/v1/music/comments/{id}", commentsHandler(eng))

	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func statsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, eng.Stats())
	}
}

// resolveTimeout bounds one inbound request. The browser strategy is
// the slowest link, so the budget covers one full fallback chain.
const resolveTimeout = 90 * time.Second

func searchHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			writeError(w, http.StatusBadRequest, "missing query parameter q")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
		defer cancel()

		result, err := eng.GetSearch(ctx, query, r.URL.Query().Get("cursor"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func songHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
		defer cancel()

		details, err := eng.GetVideoDetails(ctx, r.PathValue("id"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, details)
	}
}

func streamHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
		defer cancel()

		info, err := eng.GetStreamURL(ctx, r.PathValue("id"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func commentsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
		defer cancel()

		page, err := eng.GetComments(ctx, r.PathValue("id"), r.URL.Query().Get("cursor"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, engine.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "resource temporarily unavailable, retry later")
	default:
		writeError(w, http.StatusBadGateway, "resolution failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
