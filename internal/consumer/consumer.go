// Package consumer ingests CI log events from Kafka and persists them to
// object storage as incidents, one object per event, keyed by incident id.
// The HTTP service later analyzes them by key.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NEMYSESx/sift/internal/config"
	"github.com/NEMYSESx/sift/internal/objectstore"
)

// LogEvent is the message body published by CI webhook bridges.
type LogEvent struct {
	IncidentID string `json:"incident_id"`
	LogText    string `json:"log_text"`
	Source     string `json:"source"`
}

type Consumer struct {
	group  sarama.ConsumerGroup
	store  objectstore.Store
	logger *zap.Logger
	topic  string
	bucket string
}

func New(cfg config.KafkaConfig, bucket string, store objectstore.Store, logger *zap.Logger) (*Consumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_8_0_0
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Consumer{
		group:  group,
		store:  store,
		logger: logger,
		topic:  cfg.Topic,
		bucket: bucket,
	}, nil
}

// Run consumes until ctx is cancelled. Consume must be called in a loop to
// survive rebalances.
func (c *Consumer) Run(ctx context.Context) error {
	handler := &groupHandler{store: c.store, logger: c.logger, bucket: c.bucket}

	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("consume failed: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	store  objectstore.Store
	logger *zap.Logger
	bucket string
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		key, err := storeEvent(session.Context(), h.store, h.bucket, message.Value)
		if err != nil {
			// Bad messages are logged and skipped; retrying a malformed
			// payload forever would wedge the partition.
			h.logger.Error("failed to ingest log event",
				zap.String("topic", message.Topic),
				zap.Int64("offset", message.Offset),
				zap.Error(err))
		} else {
			h.logger.Info("ingested log event",
				zap.String("key", key),
				zap.Int64("offset", message.Offset))
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// storeEvent decodes one event and writes it to the bucket as
// "<incident_id>.log", minting an id when the event carries none.
func storeEvent(ctx context.Context, store objectstore.Store, bucket string, value []byte) (string, error) {
	var event LogEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return "", fmt.Errorf("failed to decode log event: %w", err)
	}
	if event.LogText == "" {
		return "", fmt.Errorf("log event has no log_text")
	}

	incidentID := event.IncidentID
	if incidentID == "" {
		incidentID = uuid.New().String()
	}

	key := incidentID + ".log"
	if err := store.Put(ctx, []byte(event.LogText), key, bucket); err != nil {
		return "", fmt.Errorf("failed to store log event: %w", err)
	}
	return key, nil
}
