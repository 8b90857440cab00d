// Package alertstream forwards committed alert events to Kafka so external
// consumers (dashboards, pagers) can react without polling the API.
package alertstream

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/arctic-data/corridor/internal/db"
)

// DefaultTopic is the alert topic unless overridden.
const DefaultTopic = "corridor.alerts"

// Producer implements ingest.AlertPublisher over a Kafka topic. Messages are
// keyed by object id so one object's alerts stay ordered within a partition.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for the given brokers and topic.
func NewProducer(brokers []string, topic string) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		Async:                  true,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		// The async writer reports broker errors here, not from
		// WriteMessages.
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Printf("failed to deliver %d alert messages: %v", len(messages), err)
			}
		},
	}
	return &Producer{writer: w}
}

// Publish enqueues a batch of committed alerts. The writer is asynchronous,
// so delivery is fire-and-forget: WriteMessages returns once the batch is
// queued, and broker errors surface through the completion callback above.
// Nothing here rolls back into the ingest path.
func (p *Producer) Publish(ctx context.Context, alerts []db.AlertEvent) error {
	msgs := make([]kafka.Message, 0, len(alerts))
	for i := range alerts {
		data, err := json.Marshal(&alerts[i])
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(alerts[i].ObjectID),
			Value: data,
		})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes pending messages and closes the connection.
func (p *Producer) Close() error {
	return p.writer.Close()
}
