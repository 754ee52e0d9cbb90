// Command server runs the OpenBridge HTTP bridge: an OpenAI-style
// Responses API in front of an OpenRouter-style Chat Completions backend.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nghyane/openbridge/internal/api"
	"github.com/nghyane/openbridge/internal/config"
	"github.com/nghyane/openbridge/internal/logging"
	"github.com/nghyane/openbridge/internal/orchestrator"
	"github.com/nghyane/openbridge/internal/store"
	"github.com/nghyane/openbridge/internal/tools"
	"github.com/nghyane/openbridge/internal/translate"
	"github.com/nghyane/openbridge/internal/upstream"
	"github.com/redis/go-redis/v9"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logging.Fatalf("startup: %v", err)
	}
	logging.SetLevel(parseLevel(cfg.LogLevel))

	st, err := buildStore(cfg)
	if err != nil {
		logging.Fatalf("startup: %v", err)
	}
	if sweeper, ok := st.(*store.MemoryStore); ok {
		stop := make(chan struct{})
		defer close(stop)
		go runSweeper(sweeper, stop)
	}

	registry := tools.DefaultRegistry()
	reqTrans := translate.NewRequestTranslator(registry, translate.Config{
		MaxTokensBuffer: 0,
		ModelAliasMap:   cfg.ModelAliasMap,
	})
	respTrans := translate.NewResponseTranslator()
	client := upstream.NewClient(upstream.Config{
		BaseURL:          cfg.OpenRouterBaseURL,
		APIKey:           cfg.OpenRouterAPIKey,
		HTTPReferer:      cfg.OpenRouterHTTPReferer,
		XTitle:           cfg.OpenRouterXTitle,
		RequestTimeout:   cfg.RequestTimeout,
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		RetryMaxSeconds:  cfg.RetryMaxSeconds,
		RetryBackoff:     cfg.RetryBackoff,
		DegradeFields:    cfg.DegradeFields,
	})
	orch := orchestrator.New(reqTrans, respTrans, client, st, orchestrator.Config{StateTTL: cfg.MemoryTTL})

	if cfg.ModelMapPath != "" {
		stop := make(chan struct{})
		defer close(stop)
		if err := config.WatchModelMap(cfg.ModelMapPath, func(m map[string]string) {
			reqTrans.SetModelAliasMap(m)
		}, stop); err != nil {
			logging.WithError(err).Warn("model map watcher not started")
		}
	}

	router := api.NewRouter(orch, cfg.ClientAPIKey, api.BuildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate})

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		var err error
		if cfg.TLSCertFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatalf("server: %v", err)
		}
	}()
	logging.Infof("openbridge listening on %s", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.WithError(err).Error("graceful shutdown failed")
	}
}

func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StateBackend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(redis.NewClient(opts)), nil
	default:
		return store.DisabledStore{}, nil
	}
}

func runSweeper(s *store.MemoryStore, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
