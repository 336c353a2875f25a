package config

import (
	"errors"
	"fmt"
	"strings"

	"bookflow/internal/constants"
	"bookflow/pkg/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

var validSSLModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

// checker accumulates every violation so one run reports all of them.
type checker struct {
	errs []error
}

func (c *checker) failf(field, format string, args ...interface{}) {
	c.errs = append(c.errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) require(ok bool, field, format string, args ...interface{}) {
	if !ok {
		c.failf(field, format, args...)
	}
}

func (c *checker) port(field string, port int) {
	c.require(port >= 1 && port <= 65535, field, "port must be between 1 and 65535, got %d", port)
}

func (c *checker) oneOf(field, value string, allowed ...string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return
		}
	}
	c.failf(field, "invalid value %q (valid: %s)", value, strings.Join(allowed, ", "))
}

// ValidateStatic checks the loaded configuration before any connection is attempted.
func ValidateStatic(cfg *Config) error {
	c := &checker{}

	c.server(cfg.Server)
	c.broker(cfg.Broker)
	c.database(cfg.Database)
	c.workflow(cfg.Workflow)
	c.dispatch(cfg.Dispatch)
	c.directory(cfg.Directory)
	c.management(cfg.Management)
	c.circuitBreaker(cfg.CircuitBreaker)

	if len(c.errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(c.errs...))
	}
	return nil
}

func (c *checker) server(cfg ServerConfig) {
	c.port("server.port", cfg.Port)
	c.require(cfg.ReadTimeoutSeconds > 0, "server.read_timeout_seconds", "read timeout must be positive")
	c.require(cfg.WriteTimeoutSeconds > 0, "server.write_timeout_seconds", "write timeout must be positive")
}

func (c *checker) broker(cfg BrokerConfig) {
	switch cfg.Type {
	case "":
		c.failf("broker.type", "broker type is required")
		return
	case "kafka":
		c.require(len(cfg.Kafka.Brokers) > 0, "broker.kafka.brokers", "at least one Kafka broker is required")
		for i, b := range cfg.Kafka.Brokers {
			c.require(b != "", fmt.Sprintf("broker.kafka.brokers[%d]", i), "broker address cannot be empty")
		}
		c.require(cfg.Kafka.GroupID != "", "broker.kafka.group_id", "Kafka consumer group ID is required")
	case "rabbitmq":
		c.require(cfg.RabbitMQ.Host != "", "broker.rabbitmq.host", "RabbitMQ host is required")
		c.require(cfg.RabbitMQ.InputQueue != "", "broker.rabbitmq.input_queue", "RabbitMQ input queue is required")
		c.port("broker.rabbitmq.port", cfg.RabbitMQ.Port)
	default:
		c.failf("broker.type", "unknown broker type: %s (supported: kafka, rabbitmq)", cfg.Type)
		return
	}

	r := cfg.Retry
	c.require(r.MaxAttempts >= 0, "broker.retry.max_attempts", "max_attempts must be non-negative")
	c.require(r.InitialInterval >= 0, "broker.retry.initial_interval", "initial_interval must be non-negative")
	c.require(r.MaxInterval >= 0, "broker.retry.max_interval", "max_interval must be non-negative")
	c.require(r.MaxInterval == 0 || r.InitialInterval == 0 || r.MaxInterval >= r.InitialInterval,
		"broker.retry.max_interval", "max_interval must be greater than or equal to initial_interval")
	c.require(r.Multiplier > 0, "broker.retry.multiplier", "multiplier must be positive")
}

// database validates only the stores that are configured; which ones a binary needs is
// decided at startup.
func (c *checker) database(cfg DatabaseConfig) {
	if pg := cfg.Postgres; pg.Host != "" || pg.Port > 0 {
		c.require(pg.Host != "", "database.postgres.host", "PostgreSQL host is required")
		c.port("database.postgres.port", pg.Port)
		c.require(pg.User != "", "database.postgres.user", "PostgreSQL user is required")
		c.require(pg.DBName != "", "database.postgres.dbname", "PostgreSQL database name is required")
		c.require(pg.SSLMode == "" || validSSLModes[strings.ToLower(pg.SSLMode)], "database.postgres.sslmode",
			"invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", pg.SSLMode)
	}

	if rd := cfg.Redis; rd.Host != "" || rd.Port > 0 {
		c.require(rd.Host != "", "database.redis.host", "Redis host is required")
		c.port("database.redis.port", rd.Port)
	}

	if m := cfg.MongoDB; m.URI != "" {
		c.require(strings.HasPrefix(m.URI, "mongodb://") || strings.HasPrefix(m.URI, "mongodb+srv://"),
			"database.mongodb.uri", "MongoDB URI must start with mongodb:// or mongodb+srv://")
		c.require(m.Database != "", "database.mongodb.database", "MongoDB database name is required")
	}
}

func (c *checker) workflow(cfg WorkflowConfig) {
	c.require(cfg.Reload.IntervalSeconds >= 0, "workflow.reload.interval_seconds", "reload interval must be non-negative")
	c.require(cfg.Reload.JitterMaxMilliseconds >= 0, "workflow.reload.jitter_max_milliseconds", "jitter must be non-negative")
	c.require(cfg.MaxRegexPatterns >= 0, "workflow.max_regex_patterns", "pattern cache size must be non-negative")
	c.oneOf("workflow.fallback.on_error", cfg.Fallback.OnError,
		constants.FallbackAllow, constants.FallbackDeny, constants.FallbackError)
}

func (c *checker) dispatch(cfg DispatchConfig) {
	c.oneOf("dispatch.hash_algorithm", cfg.HashAlgorithm, constants.HashAlgorithmMD5, constants.HashAlgorithmSHA256)
	c.require(cfg.TTLSeconds >= 0, "dispatch.ttl_seconds", "TTL must be non-negative")
	c.oneOf("dispatch.on_redis_error", cfg.OnRedisError, constants.FallbackAllow, constants.FallbackDeny)
	for i, f := range cfg.KeyFields {
		field := fmt.Sprintf("dispatch.key_fields[%d]", i)
		switch {
		case strings.TrimSpace(f) == "":
			c.failf(field, "key field cannot be empty")
		case !models.IsDispatchKeyField(f):
			c.failf(field, "unknown key field %q, valid values: %s", f, strings.Join(models.DispatchKeyFields, ", "))
		}
	}
}

func (c *checker) directory(cfg DirectoryConfig) {
	c.require(cfg.CacheTTLSeconds >= 0, "directory.cache_ttl_seconds", "cache TTL must be non-negative")
	c.require(cfg.LookupTimeoutMillis >= 0, "directory.lookup_timeout_millis", "lookup timeout must be non-negative")
}

func (c *checker) management(cfg ManagementConfig) {
	if cfg.Auth.Enabled {
		c.require(len(cfg.Auth.JWTSecret) >= 32, "management.auth.jwt_secret",
			"JWT secret must be at least 32 characters when auth is enabled")
	}
	if cfg.RateLimit.Enabled {
		c.require(cfg.RateLimit.RPS > 0 && cfg.RateLimit.Burst > 0, "management.rate_limit",
			"rps and burst must be positive when rate limiting is enabled")
	}
}

func (c *checker) circuitBreaker(cfg CircuitBreakerConfig) {
	if !cfg.Enabled {
		return
	}
	c.require(cfg.FailureRatio > 0 && cfg.FailureRatio <= 1, "circuit_breaker.failure_ratio",
		"failure ratio must be in (0, 1], got %v", cfg.FailureRatio)
}
