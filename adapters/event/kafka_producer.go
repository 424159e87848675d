package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/cvlinkhq/cvlink/internal/config"
)

const (
	TopicViewEvents     = "profile.views"
	TopicClickEvents    = "profile.clicks"
	TopicDownloadEvents = "profile.downloads"
)

type ViewEventPayload struct {
	ProfileID  uuid.UUID `json:"profile_id"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Referrer   string    `json:"referrer"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ClickEventPayload struct {
	ProfileID  uuid.UUID `json:"profile_id"`
	LinkID     uuid.UUID `json:"link_id"`
	LinkURL    string    `json:"link_url"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Referrer   string    `json:"referrer"`
	OccurredAt time.Time `json:"occurred_at"`
}

type DownloadEventPayload struct {
	ProfileID  uuid.UUID `json:"profile_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type KafkaProducerClient struct {
	ViewEventsWriter     *kafka.Writer
	ClickEventsWriter    *kafka.Writer
	DownloadEventsWriter *kafka.Writer
}

func NewKafkaProducerClient(cfg config.Config) (*KafkaProducerClient, error) {
	brokers := cfg.Kafka.Brokers
	if len(brokers) == 0 {
		return nil, fmt.Errorf("config Kafka brokers not found")
	}

	viewWriter := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    TopicViewEvents,
		Balancer: &kafka.LeastBytes{},
	}

	clickWriter := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    TopicClickEvents,
		Balancer: &kafka.LeastBytes{},
	}

	downloadWriter := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    TopicDownloadEvents,
		Balancer: &kafka.LeastBytes{},
	}

	return &KafkaProducerClient{
		ViewEventsWriter:     viewWriter,
		ClickEventsWriter:    clickWriter,
		DownloadEventsWriter: downloadWriter,
	}, nil
}

func (c *KafkaProducerClient) PublishViewEvent(ctx context.Context, payload ViewEventPayload) error {
	return publish(ctx, c.ViewEventsWriter, payload.ProfileID.String(), payload)
}

func (c *KafkaProducerClient) PublishClickEvent(ctx context.Context, payload ClickEventPayload) error {
	return publish(ctx, c.ClickEventsWriter, payload.ProfileID.String(), payload)
}

func (c *KafkaProducerClient) PublishDownloadEvent(ctx context.Context, payload DownloadEventPayload) error {
	return publish(ctx, c.DownloadEventsWriter, payload.ProfileID.String(), payload)
}

func publish(ctx context.Context, writer *kafka.Writer, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}

func (c *KafkaProducerClient) Close() {
	if c.ViewEventsWriter != nil {
		c.ViewEventsWriter.Close()
	}
	if c.ClickEventsWriter != nil {
		c.ClickEventsWriter.Close()
	}
	if c.DownloadEventsWriter != nil {
		c.DownloadEventsWriter.Close()
	}
}
