// Package config loads the immutable runtime configuration once at startup.
//
// Values come from built-in defaults, then an optional YAML file named by
// DATAGUARD_CONFIG_FILE, then environment variables. Anything malformed or out of
// range fails Load with a configuration error; nothing silently falls back.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dErrors "dataguard/pkg/domain-errors"
)

// MaxRetentionDays is the hard ceiling for any retention override.
const MaxRetentionDays = 3650

// Config is the root configuration passed explicitly to each component.
type Config struct {
	Server     Server     `yaml:"server"`
	Database   Database   `yaml:"database"`
	Redis      Redis      `yaml:"redis"`
	Kafka      Kafka      `yaml:"kafka"`
	Compliance Compliance `yaml:"compliance"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	Environment     string        `yaml:"environment"`
	AdminToken      string        `yaml:"-"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ExportDir       string        `yaml:"export_dir"`
	SeedDemo        bool          `yaml:"seed_demo"`
}

// Database configures the Postgres pool. An empty URL selects in-memory stores.
type Database struct {
	URL             string        `yaml:"-"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	TxTimeout       time.Duration `yaml:"tx_timeout"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
	ConnectAttempts int           `yaml:"connect_attempts"`
}

// Redis configures the lease backend. An empty URL selects the in-process lease.
type Redis struct {
	URL          string        `yaml:"-"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Kafka configures event publishing. Empty brokers disable Kafka entirely.
type Kafka struct {
	Brokers            string        `yaml:"brokers"`
	AuditTopic         string        `yaml:"audit_topic"`
	NotificationTopic  string        `yaml:"notification_topic"`
	ConsentTopic       string        `yaml:"consent_topic"`
	ConsumerGroup      string        `yaml:"consumer_group"`
	DeliveryTimeout    time.Duration `yaml:"delivery_timeout"`
	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
}

// Compliance groups the engine thresholds.
type Compliance struct {
	RetentionDays map[string]int `yaml:"retention_days"`
	DSR           DSR            `yaml:"dsr"`
	Audit         Audit          `yaml:"audit"`
	Retention     Retention      `yaml:"retention"`
	Consent       Consent        `yaml:"consent"`
}

type DSR struct {
	MaxPendingRequests  int           `yaml:"max_pending_requests"`
	AutoApprovalEnabled bool          `yaml:"auto_approval_enabled"`
	AutoApprovalKinds   []string      `yaml:"auto_approval_kinds"`
	MaxProcessingDays   int           `yaml:"max_processing_days"`
	StaleProcessingTTL  time.Duration `yaml:"stale_processing_ttl"`
}

type Audit struct {
	CapturePII   bool     `yaml:"capture_pii"`
	MaskedFields []string `yaml:"masked_fields"`
}

type Retention struct {
	CleanupSchedule  string        `yaml:"cleanup_schedule"`
	NotifyOnFailure  bool          `yaml:"notify_on_failure"`
	MaxPurgeAttempts int           `yaml:"max_purge_attempts"`
	PurgeConcurrency int           `yaml:"purge_concurrency"`
	PurgeRate        float64       `yaml:"purge_rate_per_second"`
	LeaseTTL         time.Duration `yaml:"lease_ttl"`
}

type Consent struct {
	Validity time.Duration `yaml:"validity"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8080",
			Environment:     "local",
			LogLevel:        "info",
			ShutdownTimeout: 15 * time.Second,
			ExportDir:       "",
		},
		Database: Database{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			TxTimeout:       10 * time.Second,
			AutoMigrate:     true,
			ConnectAttempts: 5,
		},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			AuditTopic:         "dataguard.audit.events",
			NotificationTopic:  "dataguard.notifications",
			ConsentTopic:       "dataguard.consent.events",
			ConsumerGroup:      "dataguard-consent-intake",
			DeliveryTimeout:    30 * time.Second,
			OutboxPollInterval: 200 * time.Millisecond,
		},
		Compliance: Compliance{
			RetentionDays: map[string]int{"FREE": 30, "PRO": 90, "BUSINESS": 365},
			DSR: DSR{
				MaxPendingRequests: 10,
				AutoApprovalKinds:  []string{"ACCESS"},
				MaxProcessingDays:  30,
				StaleProcessingTTL: time.Hour,
			},
			Audit: Audit{
				MaskedFields: []string{"email", "phone", "document_id", "requester_contact", "subject"},
			},
			Retention: Retention{
				CleanupSchedule:  "@daily",
				NotifyOnFailure:  true,
				MaxPurgeAttempts: 3,
				PurgeConcurrency: 4,
				PurgeRate:        50,
				LeaseTTL:         10 * time.Minute,
			},
			Consent: Consent{Validity: 365 * 24 * time.Hour},
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and env.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("DATAGUARD_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "read config file")
		}
		if err := parseYAML(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseYAML(data []byte, cfg *Config) error {
	// retention_days replaces the defaults wholesale so a file can't leave stale tiers behind.
	var probe struct {
		Compliance struct {
			RetentionDays map[string]int `yaml:"retention_days"`
		} `yaml:"compliance"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfiguration, "parse config file")
	}
	if len(probe.Compliance.RetentionDays) > 0 {
		cfg.Compliance.RetentionDays = map[string]int{}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfiguration, "parse config file")
	}
	return nil
}

type lookupFunc func(string) (string, bool)

// applyEnv maps environment variables onto cfg. Unparseable values are errors.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok {
			*dst = splitList(v)
		}
	}

	str("DATAGUARD_ADDR", &cfg.Server.Addr)
	str("DATAGUARD_ENV", &cfg.Server.Environment)
	str("ADMIN_API_TOKEN", &cfg.Server.AdminToken)
	str("LOG_LEVEL", &cfg.Server.LogLevel)
	str("DATAGUARD_EXPORT_DIR", &cfg.Server.ExportDir)
	boolean("DATAGUARD_SEED_DEMO", &cfg.Server.SeedDemo)
	str("DATABASE_URL", &cfg.Database.URL)
	boolean("DATABASE_AUTO_MIGRATE", &cfg.Database.AutoMigrate)
	integer("DATABASE_CONNECT_ATTEMPTS", &cfg.Database.ConnectAttempts)
	str("REDIS_URL", &cfg.Redis.URL)
	str("KAFKA_BROKERS", &cfg.Kafka.Brokers)

	for _, tier := range []string{"FREE", "PRO", "BUSINESS"} {
		if v, ok := lookup("RETENTION_DAYS_" + tier); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("RETENTION_DAYS_%s: %q is not an integer", tier, v))
				continue
			}
			cfg.Compliance.RetentionDays[tier] = n
		}
	}

	integer("DSR_MAX_PENDING_REQUESTS", &cfg.Compliance.DSR.MaxPendingRequests)
	boolean("DSR_AUTO_APPROVAL_ENABLED", &cfg.Compliance.DSR.AutoApprovalEnabled)
	list("DSR_AUTO_APPROVAL_KINDS", &cfg.Compliance.DSR.AutoApprovalKinds)
	integer("DSR_MAX_PROCESSING_DAYS", &cfg.Compliance.DSR.MaxProcessingDays)
	boolean("AUDIT_CAPTURE_PII", &cfg.Compliance.Audit.CapturePII)
	list("AUDIT_MASKED_FIELDS", &cfg.Compliance.Audit.MaskedFields)
	str("RETENTION_CLEANUP_SCHEDULE", &cfg.Compliance.Retention.CleanupSchedule)
	boolean("RETENTION_NOTIFY_ON_FAILURE", &cfg.Compliance.Retention.NotifyOnFailure)
	integer("RETENTION_MAX_PURGE_ATTEMPTS", &cfg.Compliance.Retention.MaxPurgeAttempts)
	integer("RETENTION_PURGE_CONCURRENCY", &cfg.Compliance.Retention.PurgeConcurrency)
	duration("RETENTION_LEASE_TTL", &cfg.Compliance.Retention.LeaseTTL)
	duration("CONSENT_VALIDITY", &cfg.Compliance.Consent.Validity)
	if v, ok := lookup("RETENTION_PURGE_RATE"); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RETENTION_PURGE_RATE: %q is not a number", v))
		} else {
			cfg.Compliance.Retention.PurgeRate = f
		}
	}

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		return dErrors.Wrap(joined, dErrors.CodeConfiguration, "invalid environment: "+joined.Error())
	}
	return nil
}

// Validate checks every threshold. It never corrects a value.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Addr != "", "server address must be set")
	check(!strings.EqualFold(c.Server.Environment, "production") || c.Server.AdminToken != "",
		"ADMIN_API_TOKEN is required in production")
	check(len(c.Compliance.RetentionDays) > 0, "retention_days must list at least one tier")
	for tier, days := range c.Compliance.RetentionDays {
		check(days > 0 && days <= MaxRetentionDays,
			"retention_days[%s]=%d must be between 1 and %d", tier, days, MaxRetentionDays)
	}
	dsr := c.Compliance.DSR
	check(dsr.MaxPendingRequests > 0, "dsr.max_pending_requests must be positive")
	check(dsr.MaxProcessingDays > 0, "dsr.max_processing_days must be positive")
	check(dsr.StaleProcessingTTL > 0, "dsr.stale_processing_ttl must be positive")
	for _, kind := range dsr.AutoApprovalKinds {
		switch kind {
		case "ACCESS", "ERASURE", "PORTABILITY", "RECTIFICATION":
		default:
			errs = append(errs, fmt.Errorf("dsr.auto_approval_kinds: unknown kind %q", kind))
		}
	}
	ret := c.Compliance.Retention
	check(strings.TrimSpace(ret.CleanupSchedule) != "", "retention.cleanup_schedule must be set")
	check(ret.MaxPurgeAttempts > 0, "retention.max_purge_attempts must be positive")
	check(ret.PurgeConcurrency > 0, "retention.purge_concurrency must be positive")
	check(ret.PurgeRate > 0, "retention.purge_rate_per_second must be positive")
	check(ret.LeaseTTL >= 3*time.Second, "retention.lease_ttl must be at least 3s")
	check(c.Compliance.Consent.Validity > 0, "consent.validity must be positive")
	check(c.Database.TxTimeout > 0, "database.tx_timeout must be positive")

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		return dErrors.Wrap(joined, dErrors.CodeConfiguration, "invalid configuration: "+joined.Error())
	}
	return nil
}

// Warnings lists settings that pass validation outside production but leave
// part of the server unusable.
func (c *Config) Warnings() []string {
	var out []string
	if c.Server.AdminToken == "" {
		out = append(out, "ADMIN_API_TOKEN is not set; every /v1 route will answer 401")
	}
	return out
}

// KafkaEnabled reports whether brokers are configured.
func (c *Config) KafkaEnabled() bool {
	return strings.TrimSpace(c.Kafka.Brokers) != ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
