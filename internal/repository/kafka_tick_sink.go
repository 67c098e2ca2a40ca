package repository

import (
	"context"
	"time"

	"ForexDash/internal/domain/models"
	domrepo "ForexDash/internal/domain/repository"
	pkgkafka "ForexDash/pkg/kafka"
)

type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// tickMessage is the wire form of a revealed tick on the ticks topic.
type tickMessage struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	RevealedAt time.Time `json:"revealed_at"`
}

// KafkaTickSink publishes revealed ticks keyed by symbol, so one symbol stays on one partition.
type KafkaTickSink struct {
	producer producer
	topic    string
	metrics  domrepo.Metrics
	now      func() time.Time
}

var _ domrepo.TickSink = (*KafkaTickSink)(nil)

func NewKafkaTickSink(p producer, topic string, m domrepo.Metrics) *KafkaTickSink {
	return &KafkaTickSink{producer: p, topic: topic, metrics: m, now: time.Now}
}

func (s *KafkaTickSink) message(rt models.RevealedTick) tickMessage {
	return tickMessage{
		Symbol:     rt.Symbol,
		Timestamp:  rt.Tick.Timestamp,
		Open:       rt.Tick.Open,
		High:       rt.Tick.High,
		Low:        rt.Tick.Low,
		Close:      rt.Tick.Close,
		Volume:     rt.Tick.Volume,
		RevealedAt: s.now().UTC(),
	}
}

func (s *KafkaTickSink) Publish(ctx context.Context, rt models.RevealedTick) error {
	if err := s.producer.Publish(ctx, s.topic, []byte(rt.Symbol), s.message(rt)); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordMessageSent("kafka", rt.Symbol)
	}
	return nil
}

func (s *KafkaTickSink) PublishBatch(ctx context.Context, batch []models.RevealedTick) error {
	if len(batch) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(batch))
	for i, rt := range batch {
		msgs[i] = pkgkafka.Message{Key: []byte(rt.Symbol), Value: s.message(rt)}
	}
	if err := s.producer.PublishBatch(ctx, s.topic, msgs); err != nil {
		return err
	}
	if s.metrics != nil {
		for _, rt := range batch {
			s.metrics.RecordMessageSent("kafka", rt.Symbol)
		}
	}
	return nil
}

func (s *KafkaTickSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}
