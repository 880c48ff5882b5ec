package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"guestwatch/internal/config"
	"guestwatch/internal/dispatch"
	"guestwatch/internal/metrics"
)

// Trigger is the dispatch entry point the consumer hands events to
type Trigger interface {
	Dispatch(guest dispatch.GuestSnapshot, hotel dispatch.HotelSnapshot)
}

// GuestRegisteredEvent is the message produced by the registration service
// for every successful guest registration.
type GuestRegisteredEvent struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Guest     dispatch.GuestSnapshot `json:"guest"`
	Hotel     dispatch.HotelSnapshot `json:"hotel"`
}

// Consumer reads guest registration events from Kafka and triggers the
// watchlist dispatch pipeline for each one.
type Consumer struct {
	config     *config.Config
	logger     *slog.Logger
	reader     *kafka.Reader
	dispatcher Trigger
	collector  *metrics.Collector
	wg         sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.Config, logger *slog.Logger, dispatcher Trigger, collector *metrics.Collector) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		Topic:          cfg.Kafka.GuestTopic,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitIntervalMs) * time.Millisecond,
		StartOffset:    kafka.LastOffset,
	})

	return &Consumer{
		config:     cfg,
		logger:     logger,
		reader:     reader,
		dispatcher: dispatcher,
		collector:  collector,
	}
}

// Start starts the consumer workers and blocks until the context is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting guest event consumer",
		"topic", c.config.Kafka.GuestTopic,
		"group_id", c.config.Kafka.GroupID,
		"workers", c.config.Kafka.WorkerCount)

	for i := 0; i < c.config.Kafka.WorkerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i)
	}

	<-ctx.Done()
	return ctx.Err()
}

// Stop closes the reader and waits for workers to drain
func (c *Consumer) Stop() {
	c.logger.Info("Stopping guest event consumer")
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", "error", err)
	}
	c.wg.Wait()
	c.logger.Info("Guest event consumer stopped")
}

// worker reads and processes messages until the context is cancelled
func (c *Consumer) worker(ctx context.Context, workerID int) {
	defer c.wg.Done()

	for {
		message, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, kafka.ErrGroupClosed) {
				return
			}
			c.logger.Error("Failed to read Kafka message", "worker_id", workerID, "error", err)
			time.Sleep(1 * time.Second)
			continue
		}

		if err := c.processMessage(&message); err != nil {
			c.logger.Error("Failed to process guest event",
				"worker_id", workerID,
				"partition", message.Partition,
				"offset", message.Offset,
				"error", err)
		}
	}
}

// processMessage decodes one guest registration event and hands it off.
// The hand-off returns immediately; the pipeline runs in the background.
func (c *Consumer) processMessage(message *kafka.Message) error {
	var event GuestRegisteredEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal guest event: %w", err)
	}

	if event.Guest.ID == "" {
		return fmt.Errorf("guest event missing guest id")
	}

	c.collector.EventsConsumed.Inc()
	c.logger.Debug("Guest registration event received",
		"event_id", event.ID,
		"guest_id", event.Guest.ID,
		"hotel_id", event.Hotel.ID)

	c.dispatcher.Dispatch(event.Guest, event.Hotel)
	return nil
}
