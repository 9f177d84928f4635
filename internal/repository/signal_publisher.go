package repository

import (
	"context"
	"strconv"
	"time"

	"TradeScan/internal/domain/models"
	pkgkafka "TradeScan/pkg/kafka"
	applogger "TradeScan/pkg/logger"
)

// KafkaSignalPublisher fans scan candidates and order-audit records out
// to Kafka topics for downstream consumers (alerting, journaling).
type KafkaSignalPublisher struct {
	producer   *pkgkafka.Producer
	topic      string
	auditTopic string
	l          *applogger.Logger
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic, auditTopic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic, auditTopic: auditTopic}
}

// SetLogger injects a structured logger.
func (p *KafkaSignalPublisher) SetLogger(l *applogger.Logger) { p.l = l }

// PublishCandidates publishes one message per accepted candidate, keyed
// by symbol so a partition preserves per-symbol ordering.
func (p *KafkaSignalPublisher) PublishCandidates(ctx context.Context, res *models.ScanResult) error {
	if p.producer == nil || p.topic == "" {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(res.Longs)+len(res.Shorts))
	for _, c := range append(append([]models.ScanCandidate{}, res.Longs...), res.Shorts...) {
		msgs = append(msgs, pkgkafka.Message{
			Key: []byte(c.Symbol),
			Value: map[string]interface{}{
				"symbol":    c.Symbol,
				"score":     c.Score,
				"direction": c.Direction,
				"timeframe": res.Timeframe,
				"at":        time.Now().UTC().Format(time.RFC3339),
			},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		if p.l != nil {
			p.l.Warn("candidate publish failed", applogger.Error(err))
		}
		return err
	}
	return nil
}

// PublishOrderAudit publishes one audit record per order decision.
func (p *KafkaSignalPublisher) PublishOrderAudit(ctx context.Context, symbol string, statusCode int, body []byte) error {
	if p.producer == nil || p.auditTopic == "" {
		return nil
	}
	key := []byte(symbol + ":" + strconv.Itoa(statusCode))
	if err := p.producer.Publish(ctx, p.auditTopic, key, body); err != nil {
		if p.l != nil {
			p.l.Warn("order audit publish failed", applogger.Error(err))
		}
		return err
	}
	return nil
}

// NoopSignalPublisher is wired when Kafka is not configured.
type NoopSignalPublisher struct{}

func (NoopSignalPublisher) PublishCandidates(context.Context, *models.ScanResult) error { return nil }
func (NoopSignalPublisher) PublishOrderAudit(context.Context, string, int, []byte) error {
	return nil
}
