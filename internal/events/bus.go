package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nasmon/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Event kinds on the alert.list topic.
const (
	EventAdded   = "ADDED"
	EventChanged = "CHANGED"
	EventRemoved = "REMOVED"
)

// Event is one alert.list message. REMOVED carries only the id.
type Event struct {
	Event  string            `json:"event"`
	ID     string            `json:"id"`
	Fields *models.AlertView `json:"fields,omitempty"`
}

// Bus publishes alert.list events for live UI subscribers.
type Bus interface {
	Publish(ev Event) error
	Close()
}

// KafkaBus writes events to the alert.list topic.
type KafkaBus struct {
	Writer *kafka.Writer
	log    *logrus.Logger
}

func NewKafkaBus(broker string, topic string, log *logrus.Logger) *KafkaBus {
	log.Infof("Creating Kafka producer %s with topic %s", broker, topic)
	return &KafkaBus{
		Writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  []string{broker},
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		}),
		log: log,
	}
}

func (b *KafkaBus) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(ev.ID),
		Value: data,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Writer.WriteMessages(ctx, msg); err != nil {
		b.log.WithFields(logrus.Fields{"event": ev.Event, "id": ev.ID}).
			Errorf("Failed to write event to Kafka: %v", err)
		return err
	}

	return nil
}

func (b *KafkaBus) Close() {
	if err := b.Writer.Close(); err != nil {
		b.log.Errorf("Failed to close Kafka writer: %v", err)
	}
}

// MemoryBus records events in memory; used in tests.
type MemoryBus struct {
	mu     sync.Mutex
	Events []Event
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Events = append(b.Events, ev)
	return nil
}

func (b *MemoryBus) Close() {}

func (b *MemoryBus) ByKind(kind string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, ev := range b.Events {
		if ev.Event == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (b *MemoryBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Events = nil
}
