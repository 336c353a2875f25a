package broker

import (
	"context"
	"time"

	"bookflow/internal/config"
	"bookflow/internal/logger"
	"bookflow/pkg/errors"
	"bookflow/pkg/metrics"
	"bookflow/pkg/models"
	"bookflow/pkg/retry"
)

const (
	dlqReasonFatal      = "fatal_error"
	dlqReasonExhausted  = "max_retries_exceeded"
	attributeDLQReason  = "dlq_reason"
	attributeDLQSource  = "dlq_source_topic"
	attributeDLQTime    = "dlq_timestamp"
	attributeDLQOutcome = "dlq_outcome"
)

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	policy := retry.Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}

	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.MaxElapsedTime
	}
	return policy
}

// processWithRetry runs handler under the retry policy and converts panics into fatal errors.
func processWithRetry(ctx context.Context, policy retry.Policy, serviceName, topic string, log logger.Logger, envelope models.MessageEnvelope, handler HandlerFunc) error {
	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.RecoverPanic(r)
				log.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
					"topic", topic,
				)
			}
		}()
		return handler(ctx, envelope)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(serviceName, topic).Inc()
		log.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", topic,
		)
	})
}

func dlqEnvelope(envelope models.MessageEnvelope, cause error, sourceTopic string) (models.MessageEnvelope, string) {
	reason := dlqReasonExhausted
	if retry.IsFatal(cause) {
		reason = dlqReasonFatal
	}

	attrs := make(map[string]interface{}, len(envelope.Metadata.Attributes)+4)
	for k, v := range envelope.Metadata.Attributes {
		attrs[k] = v
	}
	envelope.Metadata.Attributes = attrs

	envelope.Metadata.SetAttribute(attributeDLQReason, cause.Error())
	envelope.Metadata.SetAttribute(attributeDLQSource, sourceTopic)
	envelope.Metadata.SetAttribute(attributeDLQTime, time.Now().UTC().Format(time.RFC3339))
	envelope.Metadata.SetAttribute(attributeDLQOutcome, reason)
	return envelope, reason
}
