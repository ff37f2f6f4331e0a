package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/messaging/kafka"
)

// initKafkaProducer создаёт producer, если заданы брокеры. Без брокеров возвращает nil, nil:
// outbox-воркер не запускается и события копятся в хранилище.
func initKafkaProducer(brokers []string, clientID string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		logger.Info("kafka brokers are not configured, outbox publishing is disabled")
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, clientID, logger.WithField("component", "kafka-producer"))
	if err != nil {
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает producer, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
