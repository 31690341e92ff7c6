// Package config centralizes every setting the factory package needs to
// build an Infrastructure, so no other package reads the environment or
// a file directly.
//
// # Core Components
//
//   - [Config] and its section types (StateConfig/EventConfig/
//     LoggingConfig/ResilienceConfig/EmergencyConfig/ObservabilityConfig)
//   - [Development], [Staging], [Production]: fully-populated presets
//   - [Load]: preset -> .env -> process environment -> secret resolution
//     -> validation, in that order
//
// # Quick Start
//
//	resolver := secret.NewResolver(true)
//	cfg, err := config.Load(ctx, resolver)
//	if err != nil {
//	    // exit code 2: configuration error
//	}
//	infra, err := factory.Build(ctx, cfg)
//
// # Environment Overrides
//
// Every field carries an `env` tag (and nested sections an `envPrefix`),
// so section.key maps to SECTION_KEY in upper snake case: LOG_LEVEL,
// STATE_BACKEND, RESILIENCE_RETRY_MAX_ATTEMPTS, and so on. A preset
// supplies the default; `env.Parse` only overrides a field whose
// variable is actually set, so presets are defaults, not replacements.
//
// # Secrets
//
// State.URL and Event.URL are the only fields passed through a
// secret.Resolver: a value of `secretref:env:REDIS_URL` or a literal
// `redis://...${REDIS_PASSWORD}@host` both resolve before Load returns.
// No other field is treated as sensitive, and a resolved value is never
// logged (config itself never logs; the factory and observe packages
// that do carry the same field-redaction behavior this package's
// resolution feeds into).
package config
