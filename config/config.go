// Package config loads and validates the settings every other package is
// constructed from, so no component reads an environment variable or a
// file directly.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/fluxgraph/core/observe"
	"github.com/fluxgraph/core/secret"
)

// StateConfig selects and configures the C1 state store backend.
type StateConfig struct {
	Backend string `env:"BACKEND" envDefault:"memory"` // memory|network
	URL     string `env:"URL"`
}

// EventConfig selects and configures the C2 event bus backend.
type EventConfig struct {
	Backend string `env:"BACKEND" envDefault:"memory"` // memory|network
	URL     string `env:"URL"`
}

// LoggingConfig configures the C3 structured logger.
type LoggingConfig struct {
	Level          string `env:"LEVEL" envDefault:"INFO"`     // DEBUG|INFO|WARNING|ERROR
	Format         string `env:"FORMAT" envDefault:"console"` // console|json
	CorrelationIDs bool   `env:"CORRELATION_IDS" envDefault:"true"`
}

// ResilienceConfig supplies the defaults the factory feeds into every
// resilience.Registry entry it creates.
type ResilienceConfig struct {
	RetryMaxAttempts        int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryMinWait            time.Duration `env:"RETRY_MIN_WAIT" envDefault:"100ms"`
	RetryMaxWait            time.Duration `env:"RETRY_MAX_WAIT" envDefault:"5s"`
	CircuitFailureThreshold int           `env:"CIRCUIT_FAILURE_THRESHOLD" envDefault:"5"`
	CircuitRecoveryTimeout  time.Duration `env:"CIRCUIT_RECOVERY_TIMEOUT" envDefault:"30s"`
	CircuitSuccessThreshold int           `env:"CIRCUIT_SUCCESS_THRESHOLD" envDefault:"2"`
	DefaultNodeTimeout      time.Duration `env:"DEFAULT_NODE_TIMEOUT" envDefault:"30s"`

	// ProviderMaxConcurrent bounds how many SOURCE/EXECUTOR node calls may
	// run at once per provider, isolating a slow external system from
	// starving the rest of the run's concurrency budget.
	ProviderMaxConcurrent int `env:"PROVIDER_MAX_CONCURRENT" envDefault:"10"`
	// ProviderRateLimitPerSecond caps the call rate a single provider
	// name may sustain; ProviderRateLimitBurst is the token bucket's
	// burst capacity on top of that steady rate.
	ProviderRateLimitPerSecond float64       `env:"PROVIDER_RATE_LIMIT_PER_SECOND" envDefault:"50"`
	ProviderRateLimitBurst     int           `env:"PROVIDER_RATE_LIMIT_BURST" envDefault:"10"`
	ProviderRateLimitMaxWait   time.Duration `env:"PROVIDER_RATE_LIMIT_MAX_WAIT" envDefault:"1s"`
}

// EmergencyConfig seeds the emergency.Controller's risk-limit behavior.
type EmergencyConfig struct {
	DailyLossLimit  float64 `env:"DAILY_LOSS_LIMIT" envDefault:"-500"`
	AutoHaltOnLimit bool    `env:"AUTO_HALT_ON_LIMIT" envDefault:"true"`
}

// ObservabilityConfig configures tracing and metrics export, independent
// of Logging (which is the structured-logger half of C3).
type ObservabilityConfig struct {
	TracingEnabled  bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TracingExporter string  `env:"TRACING_EXPORTER" envDefault:"none"` // otlp|jaeger|stdout|none
	TracingSamplePct float64 `env:"TRACING_SAMPLE_PCT" envDefault:"1.0"`
	MetricsEnabled  bool    `env:"METRICS_ENABLED" envDefault:"false"`
	MetricsExporter string  `env:"METRICS_EXPORTER" envDefault:"none"` // otlp|prometheus|stdout|none
}

// Config is the fully-resolved settings object the factory package
// consumes. Every field recognized by spec section 6's "Configuration
// (recognized options)" table has a home here; environment overrides map
// section.key to SECTION_KEY, realized via caarlos0/env's envPrefix tags.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"fluxgraphd"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	State         StateConfig         `envPrefix:"STATE_"`
	Event         EventConfig         `envPrefix:"EVENT_"`
	Logging       LoggingConfig       `envPrefix:"LOG_"`
	Resilience    ResilienceConfig    `envPrefix:"RESILIENCE_"`
	Emergency     EmergencyConfig     `envPrefix:"EMERGENCY_"`
	Observability ObservabilityConfig `envPrefix:"OBSERVABILITY_"`
}

// Load builds a Config by layering, in order: the preset selected by
// ENVIRONMENT (defaulting to Development), a .env file if present (via
// godotenv, ignored if missing), then the process environment (via
// env.Parse, which only overrides fields an environment variable is
// actually set for). State/Event URLs are then passed through resolver
// so a literal `redis://...${REDIS_PASSWORD}@host` or a
// `secretref:provider:ref` both resolve before any component dials out.
// resolver may be nil, in which case only `${VAR}` expansion applies.
func Load(ctx context.Context, resolver *secret.Resolver) (*Config, error) {
	_ = godotenv.Load()

	cfg := presetFor(os.Getenv("ENVIRONMENT"))

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment: %w", err)
	}

	resolvedStateURL, err := resolver.ResolveValue(ctx, cfg.State.URL)
	if err != nil {
		return nil, fmt.Errorf("config: failed to resolve state backend url: %w", err)
	}
	cfg.State.URL = resolvedStateURL

	resolvedEventURL, err := resolver.ResolveValue(ctx, cfg.Event.URL)
	if err != nil {
		return nil, fmt.Errorf("config: failed to resolve event backend url: %w", err)
	}
	cfg.Event.URL = resolvedEventURL

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func presetFor(environment string) Config {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "staging":
		return Staging()
	case "production":
		return Production()
	default:
		return Development()
	}
}

var validBackends = map[string]bool{"memory": true, "network": true}
var validLogLevels = map[string]bool{"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true}
var validLogFormats = map[string]bool{"console": true, "json": true}

// Validate reports a configuration error a caller should treat as fatal
// before attempting to build an Infrastructure (exit code 2 at the CLI).
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("config: service_name is required")
	}
	if !validBackends[c.State.Backend] {
		return fmt.Errorf("config: unknown state backend %q", c.State.Backend)
	}
	if c.State.Backend == "network" && strings.TrimSpace(c.State.URL) == "" {
		return fmt.Errorf("config: state backend %q requires a url", c.State.Backend)
	}
	if !validBackends[c.Event.Backend] {
		return fmt.Errorf("config: unknown event backend %q", c.Event.Backend)
	}
	if c.Event.Backend == "network" && strings.TrimSpace(c.Event.URL) == "" {
		return fmt.Errorf("config: event backend %q requires a url", c.Event.Backend)
	}
	if !validLogLevels[strings.ToUpper(c.Logging.Level)] {
		return fmt.Errorf("config: unknown log level %q", c.Logging.Level)
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("config: unknown log format %q", c.Logging.Format)
	}
	if c.Resilience.RetryMaxAttempts < 1 {
		return fmt.Errorf("config: resilience.retry_max_attempts must be >= 1")
	}
	if c.Resilience.DefaultNodeTimeout <= 0 {
		return fmt.Errorf("config: resilience.default_node_timeout must be > 0")
	}
	if c.Resilience.ProviderMaxConcurrent < 1 {
		return fmt.Errorf("config: resilience.provider_max_concurrent must be >= 1")
	}
	if c.Resilience.ProviderRateLimitPerSecond <= 0 {
		return fmt.Errorf("config: resilience.provider_rate_limit_per_second must be > 0")
	}
	return nil
}

// ObserveConfig translates Logging and Observability into the
// observe.Config shape NewObserver expects, lower-casing the log level
// to match observe's debug|info|warn|error vocabulary.
func (c *Config) ObserveConfig() observe.Config {
	level := strings.ToLower(c.Logging.Level)
	if level == "warning" {
		level = "warn"
	}
	return observe.Config{
		ServiceName: c.ServiceName,
		Version:     "dev",
		Tracing: observe.TracingConfig{
			Enabled:   c.Observability.TracingEnabled,
			Exporter:  c.Observability.TracingExporter,
			SamplePct: c.Observability.TracingSamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observability.MetricsEnabled,
			Exporter: c.Observability.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   level,
			Format:  c.Logging.Format,
		},
	}
}
