// Package openbridge provides the public API for embedding OpenBridge as
// a library, mirroring the teacher's pkg/llmmux facade: a stable, minimal
// surface wrapping the internal wiring cmd/server/main.go also performs.
package openbridge

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nghyane/openbridge/internal/api"
	"github.com/nghyane/openbridge/internal/config"
	"github.com/nghyane/openbridge/internal/orchestrator"
	"github.com/nghyane/openbridge/internal/store"
	"github.com/nghyane/openbridge/internal/tools"
	"github.com/nghyane/openbridge/internal/translate"
	"github.com/nghyane/openbridge/internal/upstream"
	"github.com/redis/go-redis/v9"
)

// Config is OpenBridge's runtime configuration.
type Config = config.Config

// LoadConfig resolves configuration from the environment, an optional
// .env file, and CLI args, for callers embedding OpenBridge in their own
// entry point instead of cmd/server.
func LoadConfig(args []string) (*Config, error) {
	return config.Load(args)
}

// Server wraps the assembled HTTP server lifecycle for external embedding.
type Server struct {
	httpServer *http.Server
	cfg        *Config
}

// NewServer wires the ToolRegistry, translators, upstream client,
// conversation store, and gin router from a resolved Config, as
// cmd/server/main.go does for the standalone binary. Unlike main.go, it
// starts no periodic sweep of a memory store and no model-map file
// watcher.
func NewServer(cfg *Config, build api.BuildInfo) (*Server, error) {
	st, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	registry := tools.DefaultRegistry()
	reqTrans := translate.NewRequestTranslator(registry, translate.Config{ModelAliasMap: cfg.ModelAliasMap})
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
	router := api.NewRouter(orch, cfg.ClientAPIKey, build)

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	return &Server{httpServer: &http.Server{Addr: addr, Handler: router}, cfg: cfg}, nil
}

// Run starts the HTTP server and blocks until ctx is canceled, then
// gracefully shuts it down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLSCertFile != "" {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newStore(cfg *Config) (store.Store, error) {
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
