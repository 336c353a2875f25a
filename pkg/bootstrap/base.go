package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"bookflow/internal/broker"
	"bookflow/internal/config"
	"bookflow/internal/logger"
)

// Base carries what both binaries share: configuration, the logger and broker clients.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{Config: cfg, Logger: log}
}

func (b *Base) InitProducer() error {
	p, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	b.Producer = p
	return nil
}

// InitBroker creates the producer and consumer and tags both with serviceName for metrics.
func (b *Base) InitBroker(serviceName string) error {
	if err := b.InitProducer(); err != nil {
		return err
	}

	c, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		_ = b.Producer.Close()
		b.Producer = nil
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	b.Consumer = c

	if serviceName == "" {
		return nil
	}
	c.SetServiceName(serviceName)
	if named, ok := b.Producer.(interface{ SetServiceName(string) }); ok {
		named.SetServiceName(serviceName)
	}
	return nil
}

// Shutdown closes the consumer, then the producer, then whatever extra resources the
// caller owns. Every failure is collected.
func (b *Base) Shutdown(ctx context.Context, extra func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down")

	var errs []error
	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close: %w", err))
		}
	}
	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close: %w", err))
		}
	}
	if extra != nil {
		errs = append(errs, extra(ctx)...)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}
	b.Logger.Info("Shutdown complete")
	return nil
}
