// Package config loads OpenBridge's runtime configuration: environment
// variables (with sane defaults), an optional .env file via godotenv, a
// handful of pflag CLI overrides, and an optional YAML model-alias-map
// file that can be hot-reloaded via fsnotify.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is OpenBridge's fully resolved runtime configuration, per spec
// §6 ("Configuration inputs recognized by the core").
type Config struct {
	OpenRouterAPIKey      string
	OpenRouterBaseURL     string
	OpenRouterHTTPReferer string
	OpenRouterXTitle      string

	Host string
	Port int

	LogLevel string

	TLSCertFile string
	TLSKeyFile  string

	StateBackend string // "memory" | "redis" | "disabled"
	RedisURL     string

	ModelMapPath  string
	ModelAliasMap map[string]string

	ClientAPIKey string

	RequestTimeout   time.Duration
	RetryMaxAttempts int
	RetryMaxSeconds  time.Duration
	RetryBackoff     time.Duration
	DegradeFields    []string

	MemoryTTL time.Duration
}

// Defaults, grounded on original_source/openbridge/config.py's
// pydantic-settings field defaults.
const (
	defaultBaseURL      = "https://openrouter.ai/api/v1"
	defaultHost         = "127.0.0.1"
	defaultPort         = 8000
	defaultLogLevel     = "info"
	defaultStateBackend = "memory"
	defaultTimeoutS     = 120
	defaultRetryTries   = 2
	defaultRetrySeconds = 15
	defaultRetryBackoff = 0.5
	defaultMemoryTTLS   = 3600
)

// Load resolves the configuration from, in increasing precedence: built-in
// defaults, a .env file in the working directory (if present), the
// process environment, and the given CLI args. It does not call
// flag.Parse() on the global CommandLine set, so it is safe to call from
// tests.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := &Config{
		OpenRouterBaseURL: defaultBaseURL,
		Host:              defaultHost,
		Port:              defaultPort,
		LogLevel:          defaultLogLevel,
		StateBackend:      defaultStateBackend,
		RequestTimeout:    defaultTimeoutS * time.Second,
		RetryMaxAttempts:  defaultRetryTries,
		RetryMaxSeconds:   defaultRetrySeconds * time.Second,
		RetryBackoff:      time.Duration(defaultRetryBackoff * float64(time.Second)),
		DegradeFields:     []string{"verbosity"},
		MemoryTTL:         defaultMemoryTTLS * time.Second,
	}

	applyEnv(cfg)

	fs := flag.NewFlagSet("openbridge", flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "listen host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")
	fs.StringVar(&cfg.ModelMapPath, "model-map", cfg.ModelMapPath, "path to a model alias map file")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parsing flags: %w", err)
	}

	if cfg.ModelMapPath != "" {
		aliasMap, err := loadModelAliasMap(cfg.ModelMapPath)
		if err != nil {
			return nil, err
		}
		cfg.ModelAliasMap = aliasMap
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := lookupEnv("OPENROUTER_API_KEY"); ok {
		cfg.OpenRouterAPIKey = v
	}
	if v, ok := lookupEnv("OPENROUTER_BASE_URL"); ok {
		cfg.OpenRouterBaseURL = v
	}
	if v, ok := lookupEnv("OPENROUTER_HTTP_REFERER"); ok {
		cfg.OpenRouterHTTPReferer = v
	}
	if v, ok := lookupEnv("OPENROUTER_X_TITLE"); ok {
		cfg.OpenRouterXTitle = v
	}
	if v, ok := lookupEnv("OPENBRIDGE_HOST"); ok {
		cfg.Host = v
	}
	if v, ok := lookupEnv("OPENBRIDGE_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v, ok := lookupEnv("OPENBRIDGE_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := lookupEnv("OPENBRIDGE_TLS_CERT_FILE"); ok {
		cfg.TLSCertFile = v
	}
	if v, ok := lookupEnv("OPENBRIDGE_TLS_KEY_FILE"); ok {
		cfg.TLSKeyFile = v
	}
	if v, ok := lookupEnv("OPENBRIDGE_STATE_BACKEND"); ok {
		cfg.StateBackend = v
	}
	if v, ok := lookupEnv("OPENBRIDGE_REDIS_URL"); ok {
		cfg.RedisURL = v
	}
	if v, ok := lookupEnv("OPENBRIDGE_MODEL_MAP_PATH"); ok {
		cfg.ModelMapPath = v
	}
	if v, ok := lookupEnv("OPENBRIDGE_CLIENT_API_KEY"); ok {
		cfg.ClientAPIKey = v
	}
	if v, ok := lookupEnv("OPENBRIDGE_REQUEST_TIMEOUT_S"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestTimeout = time.Duration(n) * time.Second
		}
	}
	if v, ok := lookupEnv("OPENBRIDGE_RETRY_MAX_ATTEMPTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryMaxAttempts = n
		}
	}
	if v, ok := lookupEnv("OPENBRIDGE_RETRY_MAX_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryMaxSeconds = time.Duration(n) * time.Second
		}
	}
	if v, ok := lookupEnv("OPENBRIDGE_RETRY_BACKOFF"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RetryBackoff = time.Duration(f * float64(time.Second))
		}
	}
	if v, ok := lookupEnv("OPENBRIDGE_DEGRADE_FIELDS"); ok {
		cfg.DegradeFields = splitAndTrim(v)
	}
	if v, ok := lookupEnv("OPENBRIDGE_MEMORY_TTL_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MemoryTTL = time.Duration(n) * time.Second
		}
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validate enforces spec §6's startup invariants: a TLS cert implies a
// key and vice versa, and the state backend must be a known value.
func (c *Config) validate() error {
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("config: tls-cert-file and tls-key-file must be set together")
	}
	switch c.StateBackend {
	case "memory", "redis", "disabled":
	default:
		return fmt.Errorf("config: unknown state backend %q", c.StateBackend)
	}
	if c.StateBackend == "redis" && c.RedisURL == "" {
		return fmt.Errorf("config: state backend %q requires OPENBRIDGE_REDIS_URL", c.StateBackend)
	}
	return nil
}

// loadModelAliasMap reads a flat {alias: target} mapping from a YAML file.
func loadModelAliasMap(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading model map %q: %w", path, err)
	}
	var m map[string]string
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("config: parsing model map %q: %w", path, err)
	}
	return m, nil
}

// WatchModelMap watches ModelMapPath for changes and invokes onChange with
// the freshly parsed alias map on every write, so a long-running process
// can pick up alias edits without a restart. It starts the watch loop in
// its own goroutine and returns at once; the loop runs until stop is
// closed. cmd/server/main.go calls it directly at startup.
func WatchModelMap(path string, onChange func(map[string]string), stop <-chan struct{}) error {
	if path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: starting model map watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("config: watching %q: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if aliasMap, err := loadModelAliasMap(path); err == nil {
					onChange(aliasMap)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}
