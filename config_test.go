package harbor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	EnvLogLevel,
	EnvLogFormat,
	EnvResolutionCache,
	EnvDescriptor,
	EnvMetricsNamespace,
	EnvStrictValidation,
}

// clearConfigEnv unsets every config variable for the duration of the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range configEnv {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.ResolutionCache)
	assert.True(t, cfg.StrictValidation)
	assert.Equal(t, "harbor", cfg.MetricsNamespace)
	assert.Empty(t, cfg.Descriptor)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "harbor.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"HARBOR_LOG_LEVEL=debug\n"+
			"HARBOR_RESOLUTION_CACHE=false\n"+
			"HARBOR_STRICT_VALIDATION=false\n"+
			"HARBOR_METRICS_NAMESPACE=shop\n"+
			"HARBOR_DESCRIPTOR=/etc/harbor/beans.yaml\n",
	), 0o600))

	t.Setenv(EnvLogFormat, "console")
	// variables already set take precedence over the file
	t.Setenv(EnvMetricsNamespace, "orders")

	cfg := LoadConfig(path)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.False(t, cfg.ResolutionCache)
	assert.False(t, cfg.StrictValidation)
	assert.Equal(t, "orders", cfg.MetricsNamespace)
	assert.Equal(t, "/etc/harbor/beans.yaml", cfg.Descriptor)
}

func TestLoadConfig_InvalidBoolFallsBack(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv(EnvStrictValidation, "maybe")

	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.True(t, cfg.StrictValidation)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr string
	}{
		{name: "json", level: "info", format: "json"},
		{name: "console", level: "debug", format: "console"},
		{name: "default format", level: "warn", format: ""},
		{name: "bad level", level: "loud", format: "json", wantErr: "invalid log level"},
		{name: "bad format", level: "info", format: "xml", wantErr: "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = tt.level
			cfg.LogFormat = tt.format

			logger, err := NewLogger(cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNewFromConfig_Descriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("alternatives:\n  - mock\n"), 0o600))

	cfg := DefaultConfig()
	cfg.LogLevel = "error"
	cfg.Descriptor = path

	c, err := NewFromConfig(cfg)
	require.NoError(t, err)
	c.MustRegister(
		plainMailer("real"),
		plainMailer("mock", Alternative()),
	)
	deploy(t, c)

	assert.Equal(t, "mock", MustGet[*mailer](context.Background(), c).host)
}

func TestNewFromConfig_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Descriptor = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewFromConfig(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.LogLevel = "loud"

	_, err = NewFromConfig(cfg)
	assert.Error(t, err)
}

func TestNewFromConfig_LenientValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "error"
	cfg.StrictValidation = false

	c, err := NewFromConfig(cfg)
	require.NoError(t, err)
	c.MustRegister(MustConstructorBean("mailService", newMailService))
	deploy(t, c)

	_, err = Get[*mailService](context.Background(), c)
	assert.ErrorIs(t, err, ErrUnsatisfied)
}

func TestNewFromConfig_WithoutResolutionCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "error"
	cfg.ResolutionCache = false

	c, err := NewFromConfig(cfg, WithMiddleware(&FuncMiddleware{}))
	require.NoError(t, err)
	c.MustRegister(greeterBean("greeter"))
	deploy(t, c)

	ctx := context.Background()
	assert.Equal(t, "hello", MustGet[greeter](ctx, c).Greet())
	assert.Equal(t, "hello", MustGet[greeter](ctx, c).Greet())
}

func TestNewFromConfig_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()

	cfg := DefaultConfig()
	cfg.LogLevel = "error"
	cfg.MetricsNamespace = "shop"
	cfg.MetricsRegisterer = reg

	c, err := NewFromConfig(cfg)
	require.NoError(t, err)
	c.MustRegister(plainMailer("mailer", ApplicationScoped()))
	deploy(t, c)

	MustGet[*mailer](context.Background(), c)

	expected := `
# HELP shop_instances_created_total Bean instances created by scope.
# TYPE shop_instances_created_total counter
shop_instances_created_total{scope="application"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "shop_instances_created_total"))

	// a second container cannot register the same collectors
	_, err = NewFromConfig(cfg)
	var already prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &already)
}
