package broker

import (
	"fmt"

	"bookflow/internal/config"
	"bookflow/internal/logger"
)

const (
	TypeKafka    = "kafka"
	TypeRabbitMQ = "rabbitmq"
)

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case TypeKafka:
		return NewKafkaProducer(cfg.Kafka, log), nil
	case TypeRabbitMQ:
		return NewRabbitMQProducer(cfg.RabbitMQ, log)
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case TypeKafka:
		return NewKafkaConsumer(cfg.Kafka, cfg.Retry, log), nil
	case TypeRabbitMQ:
		return NewRabbitMQConsumer(cfg.RabbitMQ, cfg.Retry, log)
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

// Topics resolves the input, output and DLQ destinations for the configured broker.
func Topics(cfg config.BrokerConfig) (input, output, dlq string) {
	if cfg.Type == TypeRabbitMQ {
		return cfg.RabbitMQ.InputQueue, cfg.RabbitMQ.OutputQueue, cfg.RabbitMQ.DLQQueue
	}
	return cfg.Kafka.InputTopic, cfg.Kafka.OutputTopic, cfg.Kafka.DLQTopic
}

// ConfigTopic is where management-service announces workflow and dispatch config changes.
func ConfigTopic(cfg config.BrokerConfig) string {
	if cfg.Type == TypeRabbitMQ {
		return cfg.RabbitMQ.ConfigUpdateQueue
	}
	return cfg.Kafka.ConfigUpdateTopic
}
