package config

import "time"

// Development returns the preset used when ENVIRONMENT is unset or
// "development": in-memory backends, console logging, short resilience
// timeouts so local iteration fails fast.
func Development() Config {
	return Config{
		ServiceName: "fluxgraphd",
		Environment: "development",
		State:       StateConfig{Backend: "memory"},
		Event:       EventConfig{Backend: "memory"},
		Logging: LoggingConfig{
			Level:          "DEBUG",
			Format:         "console",
			CorrelationIDs: true,
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:           3,
			RetryMinWait:               100 * time.Millisecond,
			RetryMaxWait:               2 * time.Second,
			CircuitFailureThreshold:    5,
			CircuitRecoveryTimeout:     10 * time.Second,
			CircuitSuccessThreshold:    2,
			DefaultNodeTimeout:         10 * time.Second,
			ProviderMaxConcurrent:      20,
			ProviderRateLimitPerSecond: 50,
			ProviderRateLimitBurst:     20,
			ProviderRateLimitMaxWait:   500 * time.Millisecond,
		},
		Emergency: EmergencyConfig{
			DailyLossLimit:  -500,
			AutoHaltOnLimit: true,
		},
		Observability: ObservabilityConfig{
			TracingEnabled:   true,
			TracingExporter:  "stdout",
			TracingSamplePct: 1.0,
			MetricsEnabled:   true,
			MetricsExporter:  "stdout",
		},
	}
}

// Staging returns the preset for a pre-production environment: network
// backends are expected (URLs still come from the environment or a
// secret reference), json logging, production-shaped resilience defaults
// but with tracing sampled at a higher rate.
func Staging() Config {
	cfg := Production()
	cfg.Environment = "staging"
	cfg.Observability.TracingSamplePct = 0.5
	return cfg
}

// Production returns the preset for live trading/automation workloads:
// network backends, json logging, conservative resilience and emergency
// defaults.
func Production() Config {
	return Config{
		ServiceName: "fluxgraphd",
		Environment: "production",
		State:       StateConfig{Backend: "network"},
		Event:       EventConfig{Backend: "network"},
		Logging: LoggingConfig{
			Level:          "INFO",
			Format:         "json",
			CorrelationIDs: true,
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:           5,
			RetryMinWait:               250 * time.Millisecond,
			RetryMaxWait:               30 * time.Second,
			CircuitFailureThreshold:    5,
			CircuitRecoveryTimeout:     60 * time.Second,
			CircuitSuccessThreshold:    3,
			DefaultNodeTimeout:         30 * time.Second,
			ProviderMaxConcurrent:      10,
			ProviderRateLimitPerSecond: 25,
			ProviderRateLimitBurst:     5,
			ProviderRateLimitMaxWait:   2 * time.Second,
		},
		Emergency: EmergencyConfig{
			DailyLossLimit:  -500,
			AutoHaltOnLimit: true,
		},
		Observability: ObservabilityConfig{
			TracingEnabled:   true,
			TracingExporter:  "otlp",
			TracingSamplePct: 0.1,
			MetricsEnabled:   true,
			MetricsExporter:  "otlp",
		},
	}
}
