package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
)

// MessageWriter is the subset of kafka.Writer used by the producer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing monitor events to Kafka
type Producer struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	return NewProducerWithWriter(writer, topic)
}

// NewProducerWithWriter creates a producer on top of an existing writer
func NewProducerWithWriter(writer MessageWriter, topic string) *Producer {
	return &Producer{
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// PublishSnapshots publishes one SNAPSHOT_CAPTURED event per snapshot
func (p *Producer) PublishSnapshots(ctx context.Context, cycleID string, snapshots []*models.Snapshot) error {
	events := make([]models.MonitorEvent, 0, len(snapshots))
	for _, s := range snapshots {
		events = append(events, models.MonitorEvent{
			EventType: models.EventSnapshotCaptured,
			CycleID:   cycleID,
			Symbol:    s.Symbol,
			Snapshot:  s,
			Timestamp: p.now(),
		})
	}
	return p.publish(ctx, events)
}

// PublishAlerts publishes one event per price alert and daily change alert
func (p *Producer) PublishAlerts(ctx context.Context, cycleID string, set *models.AlertSet) error {
	if set == nil {
		return nil
	}

	events := make([]models.MonitorEvent, 0, len(set.SignificantChanges)+len(set.DailyChangeAlerts))
	for i := range set.SignificantChanges {
		alert := set.SignificantChanges[i]
		events = append(events, models.MonitorEvent{
			EventType:  models.EventPriceAlert,
			CycleID:    cycleID,
			Symbol:     alert.Symbol,
			PriceAlert: &alert,
			Timestamp:  p.now(),
		})
	}
	for i := range set.DailyChangeAlerts {
		alert := set.DailyChangeAlerts[i]
		events = append(events, models.MonitorEvent{
			EventType:        models.EventDailyChangeAlert,
			CycleID:          cycleID,
			Symbol:           alert.Symbol,
			DailyChangeAlert: &alert,
			Timestamp:        p.now(),
		})
	}
	return p.publish(ctx, events)
}

func (p *Producer) publish(ctx context.Context, events []models.MonitorEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.Symbol),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write messages to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
