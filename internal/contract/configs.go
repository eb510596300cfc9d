package contract

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/huangsam/dashcache/schema"
)

// Default values for configuration.
const (
	DefaultTTL         = schema.DefaultAggregateTTL
	DefaultPrecision   = 1
	DefaultScopes      = 3
	DefaultSubscribers = 20
	MaxSubscribers     = 10000
	DefaultRounds      = 3
	DefaultLatency     = 50 * time.Millisecond
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Config holds the runtime configuration for the CLI.
// This struct remains the "final, validated" config.
type Config struct {
	TTL                  time.Duration
	StaleWhileRevalidate bool
	Coalesce             bool
	Capacity             uint64 // 0 = unbounded

	Precision  int
	Output     schema.OutputMode
	OutputFile string
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	SnapshotBackend   schema.DatabaseBackend
	SnapshotDBConnect string // Please use env var as this is plaintext

	LogLevel slog.Level
	LogFile  string

	// Simulated backend and load parameters
	Scopes      int
	Subscribers int
	Rounds      int
	Latency     time.Duration
	FailureRate float64

	// Resource-specific TTL overrides from the config file
	ResourceTTLs map[schema.Resource]time.Duration
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	TTL                  string `mapstructure:"ttl"`
	StaleWhileRevalidate string `mapstructure:"stale-while-revalidate"`
	Coalesce             string `mapstructure:"coalesce"`
	Capacity             int    `mapstructure:"capacity"`
	Precision            int    `mapstructure:"precision"`
	Output               string `mapstructure:"output"`
	OutputFile           string `mapstructure:"output-file"`
	Width                int    `mapstructure:"width"`
	Color                string `mapstructure:"color"`
	SnapshotBackend      string `mapstructure:"snapshot-backend"`
	SnapshotDBConnect    string `mapstructure:"snapshot-db-connect"`
	LogLevel             string `mapstructure:"log-level"`
	LogFile              string `mapstructure:"log-file"`

	// --- Fields from simulate/load/mcp flags ---
	Scopes      int     `mapstructure:"scopes"`
	Subscribers int     `mapstructure:"subscribers"`
	Rounds      int     `mapstructure:"rounds"`
	Latency     string  `mapstructure:"latency"`
	FailureRate float64 `mapstructure:"failure-rate"`

	// --- Per-resource TTLs from config file ---
	ResourceTTLs map[string]string `mapstructure:"resource-ttls"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.ResourceTTLs != nil {
		clone.ResourceTTLs = make(map[schema.Resource]time.Duration, len(c.ResourceTTLs))
		maps.Copy(clone.ResourceTTLs, c.ResourceTTLs)
	}
	return &clone
}

// TTLFor returns the freshness window for a resource: a config file override
// first, then the --ttl flag when it was changed, then the resource default.
func (c *Config) TTLFor(r schema.Resource) time.Duration {
	if ttl, ok := c.ResourceTTLs[r]; ok {
		return ttl
	}
	if c.TTL > 0 && c.TTL != DefaultTTL {
		return c.TTL
	}
	return schema.ResourceTTL(r)
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateCacheInputs(cfg, input); err != nil {
		return err
	}
	if err := validateOutputInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := validateLoadInputs(cfg, input); err != nil {
		return err
	}
	if err := processResourceTTLs(cfg, input); err != nil {
		return err
	}
	return processLogging(cfg, input)
}

// validateCacheInputs handles the coordinator knobs.
func validateCacheInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.TTL = DefaultTTL
	if input.TTL != "" {
		ttl, err := time.ParseDuration(input.TTL)
		if err != nil {
			return fmt.Errorf("invalid --ttl value %q: %w", input.TTL, err)
		}
		if ttl <= 0 {
			return fmt.Errorf("ttl must be positive (received %s)", ttl)
		}
		cfg.TTL = ttl
	}

	swr, err := parseOptionalBool(input.StaleWhileRevalidate, true)
	if err != nil {
		return fmt.Errorf("invalid --stale-while-revalidate value: %w", err)
	}
	cfg.StaleWhileRevalidate = swr

	coalesce, err := parseOptionalBool(input.Coalesce, true)
	if err != nil {
		return fmt.Errorf("invalid --coalesce value: %w", err)
	}
	cfg.Coalesce = coalesce

	if input.Capacity < 0 {
		return fmt.Errorf("capacity cannot be negative (received %d)", input.Capacity)
	}
	cfg.Capacity = uint64(input.Capacity)
	return nil
}

// validateOutputInputs handles output format and presentation fields.
func validateOutputInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	if cfg.Width < 0 {
		return fmt.Errorf("width cannot be negative (received %d)", cfg.Width)
	}

	colors, err := parseOptionalBool(input.Color, true)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	precision := input.Precision
	if precision == 0 {
		precision = DefaultPrecision
	}
	if precision < 1 || precision > 2 {
		return fmt.Errorf("precision must be 1 or 2 (received %d)", input.Precision)
	}
	cfg.Precision = precision

	output := input.Output
	if output == "" {
		output = string(schema.TextOut)
	}
	cfg.Output = schema.OutputMode(strings.ToLower(output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("snapshot-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("snapshot-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates the snapshot backend configuration.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	backend := input.SnapshotBackend
	if backend == "" {
		backend = string(schema.SQLiteBackend)
	}
	cfg.SnapshotBackend = schema.DatabaseBackend(strings.ToLower(backend))
	if _, ok := schema.ValidDatabaseBackends[cfg.SnapshotBackend]; !ok {
		return fmt.Errorf("invalid snapshot backend '%s'. must be sqlite, mysql, postgresql, none", input.SnapshotBackend)
	}
	cfg.SnapshotDBConnect = input.SnapshotDBConnect
	return ValidateDatabaseConnectionString(cfg.SnapshotBackend, cfg.SnapshotDBConnect)
}

// validateLoadInputs handles simulated backend and load generator parameters.
func validateLoadInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Scopes = input.Scopes
	if cfg.Scopes == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.Scopes < 0 {
		return fmt.Errorf("scopes must be greater than 0 (received %d)", input.Scopes)
	}

	cfg.Subscribers = input.Subscribers
	if cfg.Subscribers == 0 {
		cfg.Subscribers = DefaultSubscribers
	}
	if cfg.Subscribers < 0 || cfg.Subscribers > MaxSubscribers {
		return fmt.Errorf("subscribers must be greater than 0 and cannot exceed %d (received %d)", MaxSubscribers, input.Subscribers)
	}

	cfg.Rounds = input.Rounds
	if cfg.Rounds == 0 {
		cfg.Rounds = DefaultRounds
	}
	if cfg.Rounds < 0 {
		return fmt.Errorf("rounds must be greater than 0 (received %d)", input.Rounds)
	}

	cfg.Latency = DefaultLatency
	if input.Latency != "" {
		latency, err := time.ParseDuration(input.Latency)
		if err != nil {
			return fmt.Errorf("invalid --latency value %q: %w", input.Latency, err)
		}
		if latency < 0 {
			return fmt.Errorf("latency cannot be negative (received %s)", latency)
		}
		cfg.Latency = latency
	}

	if input.FailureRate < 0 || input.FailureRate > 1 {
		return fmt.Errorf("failure-rate must be between 0 and 1 (received %v)", input.FailureRate)
	}
	cfg.FailureRate = input.FailureRate
	return nil
}

// processResourceTTLs converts the raw per-resource TTL map from the config file.
func processResourceTTLs(cfg *Config, input *ConfigRawInput) error {
	if len(input.ResourceTTLs) == 0 {
		cfg.ResourceTTLs = nil
		return nil
	}
	cfg.ResourceTTLs = make(map[schema.Resource]time.Duration, len(input.ResourceTTLs))
	for name, raw := range input.ResourceTTLs {
		resource, ok := LookupResource(name)
		if !ok {
			return fmt.Errorf("unknown resource '%s' in resource-ttls", name)
		}
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid ttl for resource '%s': %w", name, err)
		}
		if ttl <= 0 {
			return fmt.Errorf("ttl for resource '%s' must be positive (received %s)", name, ttl)
		}
		cfg.ResourceTTLs[resource] = ttl
	}
	return nil
}

// LookupResource matches a resource name case-insensitively; viper lowercases map keys.
func LookupResource(name string) (schema.Resource, bool) {
	for _, r := range schema.AllResources {
		if strings.EqualFold(string(r), name) {
			return r, true
		}
	}
	return "", false
}

// processLogging parses the log level and transfers the log file.
func processLogging(cfg *Config, input *ConfigRawInput) error {
	cfg.LogFile = input.LogFile
	level := input.LogLevel
	if level == "" {
		level = "warn"
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level value %q: %w", input.LogLevel, err)
	}
	return nil
}

// parseOptionalBool parses s with ParseBoolString, returning def for an empty string.
func parseOptionalBool(s string, def bool) (bool, error) {
	if s == "" {
		return def, nil
	}
	return ParseBoolString(s)
}
