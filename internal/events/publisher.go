package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TypeContractPersisted = "contract.persisted"
	TypeTicketsPersisted  = "contract.tickets_persisted"
)

// Envelope is the message body written for every domain event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	ContractID string          `json:"contractId"`
	UserID     string          `json:"userId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, eventType, contractID, userID string, data any) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: topic,
	}, nil
}

// Publish keys the message by contract id so every event of one contract
// lands on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, contractID, userID string, data any) error {
	msg, err := newMessage(eventType, contractID, userID, data)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func newMessage(eventType, contractID, userID string, data any) (kafka.Message, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return kafka.Message{}, fmt.Errorf("encode %s event: %w", eventType, err)
		}
		raw = encoded
	}
	now := time.Now().UTC()
	body, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		ContractID: contractID,
		UserID:     userID,
		OccurredAt: now,
		Data:       raw,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return kafka.Message{
		Key:   []byte(contractID),
		Value: body,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	}, nil
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, string, any) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
