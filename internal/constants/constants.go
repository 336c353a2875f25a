package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixDispatch  = "dispatch:"
	CacheKeyPrefixOrganizer = "organizer:"
)

const (
	DefaultInputTopic  = "booking_events"
	DefaultOutputTopic = "workflow_dispatches"
)

const (
	DefaultMongoDBName   = "bookflow"
	DecisionsCollection  = "workflow_decisions"
	OrganizersCollection = "organizers"
)

const (
	DefaultDispatchTTLSeconds    = 7 * 24 * 3600
	DefaultDirectoryTTLSeconds   = 600
	DefaultReloadIntervalSeconds = 30
)

const (
	ShutdownTimeout     = 5 * time.Second
	DefaultInitTimeout  = 30 * time.Second
	ClaimReleaseTimeout = 2 * time.Second
)

const (
	PostgresMaxOpenConns    = 20
	PostgresMaxIdleConns    = 5
	PostgresConnMaxLifetime = 30 * time.Minute
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
	FallbackError = "error"
)

const (
	HashAlgorithmMD5    = "md5"
	HashAlgorithmSHA256 = "sha256"
)

const (
	SourceMongoDB = "mongodb"
	SourceRedis   = "redis"
)

const (
	ContextKeyUserID = "user_id"
)

const (
	ContextKeyClientIP  = "client_ip"
	ContextKeyRequestID = "request_id"
)
