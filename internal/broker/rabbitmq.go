package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"bookflow/internal/config"
	"bookflow/internal/logger"
	"bookflow/pkg/logging"
	"bookflow/pkg/metrics"
	"bookflow/pkg/models"
	"bookflow/pkg/retry"
	"bookflow/pkg/tracing"
)

func rabbitMQURL(cfg config.RabbitMQConfig) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.VHost,
	}
	if cfg.VHost == "" || cfg.VHost == "/" {
		u.Path = "/"
	}
	return u.String()
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	return err
}

type RabbitMQProducer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	mu          sync.Mutex
	declared    map[string]bool
	logger      logger.Logger
	serviceName string
}

func NewRabbitMQProducer(cfg config.RabbitMQConfig, log logger.Logger) (*RabbitMQProducer, error) {
	conn, err := amqp.Dial(rabbitMQURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	return &RabbitMQProducer{
		conn:        conn,
		ch:          ch,
		declared:    make(map[string]bool),
		logger:      log,
		serviceName: "unknown",
	}, nil
}

func (p *RabbitMQProducer) SetServiceName(name string) {
	p.serviceName = name
}

// Publish sends msg to the queue named by topic through the default exchange.
func (p *RabbitMQProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[topic] {
		if err := declareQueue(p.ch, topic); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", topic, err)
		}
		p.declared[topic] = true
	}

	start := time.Now()
	err = p.ch.PublishWithContext(ctx,
		"",    // exchange
		topic, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Timestamp:    start,
			Headers:      tracing.InjectAMQPHeaders(ctx, nil),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish rabbitmq message: %w", err)
	}

	metrics.IncBrokerMessagesWritten(p.serviceName, topic)
	metrics.ObserveBrokerMessageSize(p.serviceName, topic, "out", len(body))
	metrics.ObserveBrokerWriteDuration(p.serviceName, topic, time.Since(start))
	return nil
}

func (p *RabbitMQProducer) Close() error {
	chErr := p.ch.Close()
	if err := p.conn.Close(); err != nil {
		return err
	}
	return chErr
}

type RabbitMQConsumer struct {
	cfg         config.RabbitMQConfig
	policy      retry.Policy
	conn        *amqp.Connection
	ch          *amqp.Channel
	wg          sync.WaitGroup
	logger      logger.Logger
	dlqProducer *RabbitMQProducer
	serviceName string
}

func NewRabbitMQConsumer(cfg config.RabbitMQConfig, retryCfg config.RetryConfig, log logger.Logger) (*RabbitMQConsumer, error) {
	conn, err := amqp.Dial(rabbitMQURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 10
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set rabbitmq prefetch: %w", err)
	}

	consumer := &RabbitMQConsumer{
		cfg:         cfg,
		policy:      retryPolicy(retryCfg),
		conn:        conn,
		ch:          ch,
		logger:      log,
		serviceName: "unknown",
	}

	if cfg.DLQQueue != "" {
		dlq, err := NewRabbitMQProducer(cfg, log)
		if err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
		consumer.dlqProducer = dlq
	}

	return consumer, nil
}

func (c *RabbitMQConsumer) SetServiceName(name string) {
	c.serviceName = name
	if c.dlqProducer != nil {
		c.dlqProducer.SetServiceName(name)
	}
}

func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler HandlerFunc) error {
	consumeCtx := logging.WithServiceName(ctx, c.serviceName)

	if err := declareQueue(c.ch, queue); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	deliveries, err := c.ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to consume queue %s: %w", queue, err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.logger.InfowCtx(consumeCtx, "Started consuming", "queue", queue)

		for {
			select {
			case <-ctx.Done():
				c.logger.InfowCtx(consumeCtx, "Stopped consuming", "queue", queue, "reason", "context canceled")
				return
			case d, ok := <-deliveries:
				if !ok {
					c.logger.WarnwCtx(consumeCtx, "Delivery channel closed", "queue", queue)
					return
				}
				metrics.IncBrokerMessagesRead(c.serviceName, queue)
				metrics.ObserveBrokerMessageSize(c.serviceName, queue, "in", len(d.Body))
				c.handle(ctx, d, queue, handler)
			}
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

func (c *RabbitMQConsumer) handle(ctx context.Context, d amqp.Delivery, queue string, handler HandlerFunc) {
	msgCtx, span := tracing.StartSpanFromAMQPDelivery(ctx, "rabbitmq.consume", d.Headers)
	defer span.End()
	msgCtx = logging.WithServiceName(msgCtx, c.serviceName)

	var envelope models.MessageEnvelope
	if err := json.Unmarshal(d.Body, &envelope); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to unmarshal message", "error", err, "queue", queue)
		c.nack(msgCtx, d)
		return
	}

	if envelope.Metadata.TraceID != "" {
		msgCtx = logging.WithTraceID(msgCtx, envelope.Metadata.TraceID)
	}
	msgCtx = logging.WithMessageID(msgCtx, envelope.ID)

	if err := processWithRetry(msgCtx, c.policy, c.serviceName, queue, c.logger, envelope, handler); err != nil {
		if ctx.Err() != nil {
			if nackErr := d.Nack(false, true); nackErr != nil {
				c.logger.ErrorwCtx(msgCtx, "Failed to requeue message", "error", nackErr, "queue", queue)
			}
			return
		}
		c.logger.ErrorwCtx(msgCtx, "Failed to process message after retries", "error", err, "queue", queue)
		if !c.sendToDLQ(msgCtx, envelope, err, queue) {
			c.nack(msgCtx, d)
			return
		}
	}

	if err := d.Ack(false); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to ack message", "error", err, "queue", queue)
	}
}

func (c *RabbitMQConsumer) nack(ctx context.Context, d amqp.Delivery) {
	if err := d.Nack(false, false); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to nack message", "error", err)
	}
}

func (c *RabbitMQConsumer) sendToDLQ(ctx context.Context, envelope models.MessageEnvelope, cause error, sourceQueue string) bool {
	if c.dlqProducer == nil {
		c.logger.WarnwCtx(ctx, "No DLQ configured, dropping message", "queue", sourceQueue)
		return false
	}

	dlqMsg, reason := dlqEnvelope(envelope, cause, sourceQueue)
	if err := c.dlqProducer.Publish(ctx, c.cfg.DLQQueue, dlqMsg); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to send message to DLQ", "error", err, "queue", sourceQueue)
		return false
	}

	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, sourceQueue, reason).Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ",
		"source_queue", sourceQueue,
		"dlq_queue", c.cfg.DLQQueue,
		"reason", reason,
	)
	return true
}

func (c *RabbitMQConsumer) Close() error {
	var err error
	if closeErr := c.ch.Close(); closeErr != nil {
		err = closeErr
	}
	c.wg.Wait()
	if c.dlqProducer != nil {
		if closeErr := c.dlqProducer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	if closeErr := c.conn.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
