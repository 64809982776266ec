package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"RestoPOS/app/services"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the payload written to the topic
type Envelope struct {
	Type     services.EventType `json:"type"`
	OrderID  string             `json:"orderId,omitempty"`
	TableID  string             `json:"tableId,omitempty"`
	ShiftID  string             `json:"shiftId,omitempty"`
	Event    services.Event     `json:"event"`
	Produced time.Time          `json:"produced"`
}

// Publisher streams committed store events to Kafka. Notify never blocks;
// events are dropped when the buffer is full.
type Publisher struct {
	writer messageWriter
	logger *services.LoggerService
	queue  chan services.Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewKafkaWriter builds the writer for brokers and topic
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // same order, same partition
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// NewPublisher starts a publisher on top of a kafka writer
func NewPublisher(brokers []string, topic string, logger *services.LoggerService) *Publisher {
	return newPublisher(NewKafkaWriter(brokers, topic), logger, 256)
}

func newPublisher(writer messageWriter, logger *services.LoggerService, buffer int) *Publisher {
	p := &Publisher{
		writer: writer,
		logger: logger,
		queue:  make(chan services.Event, buffer),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Notify queues an event for publishing
func (p *Publisher) Notify(event services.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- event:
	default:
		if p.logger != nil {
			p.logger.LogWarning("Kafka queue full, event dropped", string(event.Type))
		}
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.queue {
		msg, err := encode(event)
		if err != nil {
			if p.logger != nil {
				p.logger.LogError("Failed to encode event", err, string(event.Type))
			}
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = p.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil && p.logger != nil {
			p.logger.LogError("Failed to publish event", err, string(event.Type))
		}
	}
}

// Close drains the queue and closes the writer
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}

func encode(event services.Event) (kafka.Message, error) {
	envelope := Envelope{
		Type:     event.Type,
		Event:    event,
		Produced: time.Now().UTC(),
	}
	if event.Order != nil {
		envelope.OrderID = event.Order.ID
	}
	if event.Table != nil {
		envelope.TableID = event.Table.ID
	}
	if event.Shift != nil {
		envelope.ShiftID = event.Shift.ID
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return kafka.Message{}, err
	}

	key := firstNonEmpty(envelope.OrderID, envelope.TableID, envelope.ShiftID, string(event.Type))
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.At,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
