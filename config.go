package harbor

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environment variables read by LoadConfig.
const (
	EnvLogLevel          = "HARBOR_LOG_LEVEL"
	EnvLogFormat         = "HARBOR_LOG_FORMAT"
	EnvResolutionCache   = "HARBOR_RESOLUTION_CACHE"
	EnvDescriptor        = "HARBOR_DESCRIPTOR"
	EnvMetricsNamespace  = "HARBOR_METRICS_NAMESPACE"
	EnvStrictValidation  = "HARBOR_STRICT_VALIDATION"
	defaultMetricsPrefix = "harbor"
)

// Config holds container settings.
type Config struct {
	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string

	// LogFormat is "json" or "console".
	LogFormat string

	// ResolutionCache enables the typesafe resolution cache.
	ResolutionCache bool

	// Descriptor is the path of the container-level beans.yaml, if any.
	Descriptor string

	// MetricsNamespace prefixes the metrics of NewMetricsMiddleware.
	MetricsNamespace string

	// MetricsRegisterer, when set, makes NewFromConfig install a
	// MetricsMiddleware registered there under MetricsNamespace. LoadConfig
	// leaves it nil.
	MetricsRegisterer prometheus.Registerer

	// StrictValidation makes unresolvable injection points deployment
	// problems. When false they are logged and fail at first use instead.
	StrictValidation bool
}

// DefaultConfig returns the settings used when no configuration is loaded.
func DefaultConfig() Config {
	return Config{
		LogLevel:         "info",
		LogFormat:        "json",
		ResolutionCache:  true,
		MetricsNamespace: defaultMetricsPrefix,
		StrictValidation: true,
	}
}

// LoadConfig reads .env files (if present) and populates a Config from
// environment variables. Missing files are not an error.
func LoadConfig(envFiles ...string) Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// Non-fatal: .env may not exist in production
		_ = godotenv.Load(f)
	}

	def := DefaultConfig()

	return Config{
		LogLevel:         env(EnvLogLevel, def.LogLevel),
		LogFormat:        env(EnvLogFormat, def.LogFormat),
		ResolutionCache:  envBool(EnvResolutionCache, def.ResolutionCache),
		Descriptor:       env(EnvDescriptor, def.Descriptor),
		MetricsNamespace: env(EnvMetricsNamespace, def.MetricsNamespace),
		StrictValidation: envBool(EnvStrictValidation, def.StrictValidation),
	}
}

// NewLogger builds a zap logger for cfg.
func NewLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zc zap.Config
	switch strings.ToLower(cfg.LogFormat) {
	case "console":
		zc = zap.NewDevelopmentConfig()
	case "json", "":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}

// NewFromConfig creates a container configured by cfg. It builds the logger,
// loads the descriptor file cfg names and installs a MetricsMiddleware when
// cfg carries a registerer.
func NewFromConfig(cfg Config, opts ...Option) (*Container, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	base := []Option{WithConfig(cfg), WithLogger(logger)}
	if cfg.Descriptor != "" {
		d, err := LoadDescriptor(cfg.Descriptor)
		if err != nil {
			return nil, err
		}
		base = append(base, WithDescriptor(d))
	}
	if cfg.MetricsRegisterer != nil {
		metrics, err := NewMetricsMiddleware(cfg.MetricsRegisterer, cfg.MetricsNamespace)
		if err != nil {
			return nil, err
		}
		base = append(base, WithMiddleware(metrics))
	}

	return New(append(base, opts...)...), nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}

	return b
}
