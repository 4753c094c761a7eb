package repository

import (
	"context"

	"EconCast/internal/domain/models"
	"EconCast/internal/domain/repository"
	pkgkafka "EconCast/pkg/kafka"
)

type batchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaPublisher implements Publisher for Kafka. Messages are keyed by
// indicator so one series always lands on one partition.
type KafkaPublisher struct {
	producer    batchProducer
	topic       string
	alertsTopic string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer batchProducer, topic, alertsTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, alertsTopic: alertsTopic}
}

var _ repository.Publisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) PublishObservations(ctx context.Context, obs []models.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(obs))
	for i, o := range obs {
		msgs[i] = pkgkafka.Message{
			Key:     []byte(o.Indicator),
			Value:   models.NewObservationMessage(o),
			Headers: map[string]string{"source": "bcb"},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) PublishAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 || p.alertsTopic == "" {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(alerts))
	for i, a := range alerts {
		msgs[i] = pkgkafka.Message{Key: []byte(a.SeriesName), Value: a}
	}
	return p.producer.PublishBatch(ctx, p.alertsTopic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
