package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bookflow"

var (
	WorkflowEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_events_total",
			Help:      "Total number of booking events processed by workflow service (count)",
		},
		[]string{"trigger", "status"},
	)

	WorkflowProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_processing_duration_ms",
			Help:      "Processing duration of a booking event in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	WorkflowActiveWorkflows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflow_active_workflows",
			Help:      "Number of active workflows loaded in memory (count)",
		},
	)

	WorkflowDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_decisions_total",
			Help:      "Total number of action decisions by outcome (count)",
		},
		[]string{"action_type", "outcome"},
	)

	ConditionEvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "condition_evaluation_duration_us",
			Help:      "Duration of condition tree evaluation in microseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"result"},
	)

	DispatchClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_claims_total",
			Help:      "Total number of dispatch idempotency claims (count)",
		},
		[]string{"status"},
	)

	DispatchClaimDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_claim_duration_ms",
			Help:      "Duration of dispatch idempotency claims in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	DirectoryLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_lookups_total",
			Help:      "Total number of organizer directory lookups (count)",
		},
		[]string{"source", "status"},
	)

	DirectoryLookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "directory_lookup_duration_ms",
			Help:      "Duration of organizer directory lookups in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"source"},
	)

	DecisionLogWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_log_writes_total",
			Help:      "Total number of decision log writes (count)",
		},
		[]string{"status"},
	)

	TemplateRenderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_render_errors_total",
			Help:      "Total number of message template render failures (count)",
		},
		[]string{"action_type"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlq_messages_total",
			Help:      "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_failures_total",
			Help:      "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_requests_total",
			Help:      "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	AuthRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_requests_total",
			Help:      "Total number of authenticated API requests by result (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_usage_total",
			Help:      "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)

	BrokerMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_messages_read_total",
			Help:      "Total number of messages read from the broker (count)",
		},
		[]string{"service", "topic"},
	)

	BrokerMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_messages_written_total",
			Help:      "Total number of messages written to the broker (count)",
		},
		[]string{"service", "topic"},
	)

	BrokerMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broker_message_size_bytes",
			Help:      "Size of broker messages in bytes",
			Buckets:   []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kafka_consumer_lag",
			Help:      "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	BrokerWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broker_write_duration_ms",
			Help:      "Duration of writing messages to the broker in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_queries_total",
			Help:      "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "database_query_duration_ms",
			Help:      "Duration of database queries in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

var (
	fallbackOnce sync.Once
	databaseOnce sync.Once
)

func RegisterWorkflowMetrics() {
	prometheus.MustRegister(WorkflowEventsTotal)
	prometheus.MustRegister(WorkflowProcessingDuration)
	prometheus.MustRegister(WorkflowActiveWorkflows)
	prometheus.MustRegister(WorkflowDecisionsTotal)
	prometheus.MustRegister(ConditionEvaluationDuration)
	prometheus.MustRegister(TemplateRenderErrorsTotal)
	prometheus.MustRegister(DecisionLogWritesTotal)
	registerFallbackUsageTotalOnce()
}

func RegisterDispatchMetrics() {
	prometheus.MustRegister(DispatchClaimsTotal)
	prometheus.MustRegister(DispatchClaimDuration)
	registerFallbackUsageTotalOnce()
}

func RegisterDirectoryMetrics() {
	prometheus.MustRegister(DirectoryLookupsTotal)
	prometheus.MustRegister(DirectoryLookupDuration)
}

func registerFallbackUsageTotalOnce() {
	fallbackOnce.Do(func() {
		prometheus.MustRegister(FallbackUsageTotal)
	})
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(BrokerMessagesReadTotal)
	prometheus.MustRegister(BrokerMessagesWrittenTotal)
	prometheus.MustRegister(BrokerMessageSizeBytes)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(BrokerWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterManagementMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(AuthRequestsTotal)
	RegisterDatabaseMetrics()
}

func RegisterDatabaseMetrics() {
	databaseOnce.Do(func() {
		prometheus.MustRegister(DatabaseQueriesTotal)
		prometheus.MustRegister(DatabaseQueryDuration)
	})
}

func ObserveWorkflowDuration(duration time.Duration, status string) {
	WorkflowProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveConditionEvaluation(duration time.Duration, result bool) {
	ConditionEvaluationDuration.WithLabelValues(strconv.FormatBool(result)).Observe(float64(duration.Microseconds()))
}

func SetActiveWorkflows(count int) {
	WorkflowActiveWorkflows.Set(float64(count))
}

func IncWorkflowDecision(actionType, outcome string) {
	WorkflowDecisionsTotal.WithLabelValues(actionType, outcome).Inc()
}

func ObserveDispatchClaim(duration time.Duration, status string) {
	DispatchClaimsTotal.WithLabelValues(status).Inc()
	DispatchClaimDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveDirectoryLookup(source, status string, duration time.Duration) {
	DirectoryLookupsTotal.WithLabelValues(source, status).Inc()
	DirectoryLookupDuration.WithLabelValues(source).Observe(float64(duration.Milliseconds()))
}

func IncBrokerMessagesRead(service, topic string) {
	BrokerMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncBrokerMessagesWritten(service, topic string) {
	BrokerMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveBrokerMessageSize(service, topic, direction string, sizeBytes int) {
	BrokerMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, strconv.Itoa(partition)).Set(float64(lag))
}

func ObserveBrokerWriteDuration(service, topic string, duration time.Duration) {
	BrokerWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
