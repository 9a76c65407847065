package messaging

import (
	"context"
	"encoding/json"
)

// Topics published by the service.
const (
	TopicAnalysisCompleted   = "analysis.completed"
	TopicHealthRecordCreated = "health_record.created"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Publisher defines the interface for publishing messages
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandlerFunc processes one message payload.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Consume subscribes to channel and feeds every message to handler until
// ctx is done. Handler errors are passed to onError and do not stop the loop.
func Consume(ctx context.Context, b Broker, channel string, handler HandlerFunc, onError func(error)) error {
	msgs, err := b.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := handler(ctx, payload); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

// NopBroker drops published messages. Used when no broker is configured.
type NopBroker struct{}

func (NopBroker) Publish(context.Context, string, interface{}) error { return nil }

func (NopBroker) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (NopBroker) Close() error { return nil }
