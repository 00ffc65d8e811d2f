// Package rtconfig loads runtime configuration from environment
// variables: which replica backends to open, where, and how the
// ambient logger should behave.
package rtconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig loads values from environment variables under an optional
// prefix.
type EnvConfig struct {
	prefix string
}

// NewEnvConfig constructs a loader for variables named "<prefix>_<KEY>",
// or bare "<KEY>" when prefix is empty.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// GetString returns the named variable, or defaultValue if unset.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		return v
	}
	return defaultValue
}

// MustGetString returns the named variable or panics if it is unset.
func (ec *EnvConfig) MustGetString(key string) string {
	full := ec.buildKey(key)
	v := os.Getenv(full)
	if v == "" {
		panic(fmt.Sprintf("required environment variable %s not set", full))
	}
	return v
}

// GetInt parses the named variable as an integer, or returns
// defaultValue if unset or unparseable.
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetBool parses the named variable as a boolean, or returns
// defaultValue if unset or unparseable.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetDuration parses the named variable via time.ParseDuration, or
// returns defaultValue if unset or unparseable.
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetStringSlice splits the named variable on commas, trimming
// whitespace, or returns defaultValue if unset.
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	v := os.Getenv(ec.buildKey(key))
	if v == "" {
		return defaultValue
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// LogConfig configures the ambient rtlog logger.
type LogConfig struct {
	Level  string
	Format string
}

// ReplicaConfig names and locates every storage backend a Manager can
// open for a space, resolved per-space at Manager.Open time rather than
// eagerly (spec.md §5: replicas are opened lazily, one per touched
// space).
type ReplicaConfig struct {
	Backend string // "memory" | "bolt" | "couch"

	BoltPath string

	CouchURL      string
	CouchDatabase string
}

// AuditConfig points the audit trail at its Postgres backend.
type AuditConfig struct {
	Enabled bool
	DSN     string
}

// NotifyConfig points the space manager at an optional Redis pub/sub
// broker used to notify other processes when a space commits.
type NotifyConfig struct {
	Enabled bool
	Addr    string
	Channel string
}

// Config is the full runtime configuration, loaded once at process
// start.
type Config struct {
	Log     LogConfig
	Replica ReplicaConfig
	Audit   AuditConfig
	Notify  NotifyConfig
}

// Load reads Config from the environment under prefix (e.g. "RUNTIME").
func Load(prefix string) Config {
	env := NewEnvConfig(prefix)
	return Config{
		Log: LogConfig{
			Level:  env.GetString("LOG_LEVEL", "info"),
			Format: env.GetString("LOG_FORMAT", "text"),
		},
		Replica: ReplicaConfig{
			Backend:       env.GetString("REPLICA_BACKEND", "memory"),
			BoltPath:      env.GetString("BOLT_PATH", "runtime.bolt"),
			CouchURL:      env.GetString("COUCH_URL", "http://localhost:5984"),
			CouchDatabase: env.GetString("COUCH_DATABASE", "runtime"),
		},
		Audit: AuditConfig{
			Enabled: env.GetBool("AUDIT_ENABLED", false),
			DSN:     env.GetString("AUDIT_DSN", ""),
		},
		Notify: NotifyConfig{
			Enabled: env.GetBool("NOTIFY_ENABLED", false),
			Addr:    env.GetString("NOTIFY_ADDR", "localhost:6379"),
			Channel: env.GetString("NOTIFY_CHANNEL", "runtime-commits"),
		},
	}
}

// Validator accumulates configuration validation errors.
type Validator struct {
	errors []string
}

// NewValidator constructs an empty Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// RequireOneOf records an error unless value is one of allowed.
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// RequireNonEmpty records an error if value is empty.
func (v *Validator) RequireNonEmpty(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// Validate returns an error summarizing every recorded violation, or nil
// if there were none.
func (v *Validator) Validate() error {
	if len(v.errors) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
}

// ValidateConfig checks cfg for the constraints the runtime relies on.
func ValidateConfig(cfg Config) error {
	v := NewValidator()
	v.RequireOneOf("Log.Level", cfg.Log.Level, []string{"debug", "info", "warn", "error"})
	v.RequireOneOf("Replica.Backend", cfg.Replica.Backend, []string{"memory", "bolt", "couch"})
	if cfg.Replica.Backend == "bolt" {
		v.RequireNonEmpty("Replica.BoltPath", cfg.Replica.BoltPath)
	}
	if cfg.Replica.Backend == "couch" {
		v.RequireNonEmpty("Replica.CouchURL", cfg.Replica.CouchURL)
		v.RequireNonEmpty("Replica.CouchDatabase", cfg.Replica.CouchDatabase)
	}
	if cfg.Audit.Enabled {
		v.RequireNonEmpty("Audit.DSN", cfg.Audit.DSN)
	}
	return v.Validate()
}
