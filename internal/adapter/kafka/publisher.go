package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	queueSize = 8

	publishAttempts   = 3
	initialBackoff    = 200 * time.Millisecond
	maxPublishBackoff = 2 * time.Second
)

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type batch struct {
	cycleID uuid.UUID
	quakes  []domain.Earthquake
}

// Publisher writes delivered earthquake sequences to a Kafka topic, one
// message per earthquake in feed order.
type Publisher struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
	queue   chan batch
}

// NewPublisher creates a producer for topic on the given brokers.
func NewPublisher(brokers []string, topic string, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newPublisher(w, logger, metrics)
}

func newPublisher(w messageWriter, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		writer:  w,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan batch, queueSize),
	}
}

// Submit queues a cycle for Run to publish. It never blocks; a full queue
// drops the cycle and returns false.
func (p *Publisher) Submit(cycleID uuid.UUID, quakes []domain.Earthquake) bool {
	if len(quakes) == 0 {
		return true
	}
	select {
	case p.queue <- batch{cycleID: cycleID, quakes: quakes}:
		return true
	default:
		p.logger.Warn("publish queue full, dropping cycle", "cycle_id", cycleID, "count", len(quakes))
		p.metrics.PublishErrors.Inc()
		return false
	}
}

// Run publishes submitted cycles until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-p.queue:
			p.publishWithRetry(ctx, b)
		}
	}
}

// publishWithRetry tries a cycle a few times with exponential backoff, then
// gives up on it.
func (p *Publisher) publishWithRetry(ctx context.Context, b batch) {
	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err := p.Publish(ctx, b.cycleID, b.quakes)
		if err == nil {
			return
		}
		if attempt == publishAttempts || ctx.Err() != nil {
			p.logger.Error("publish failed, dropping cycle", "cycle_id", b.cycleID, "attempts", attempt, "error", err)
			return
		}
		p.logger.Warn("publish failed, retrying", "cycle_id", b.cycleID, "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return
		}
		backoff = retry.NextBackoff(backoff, maxPublishBackoff)
	}
}

// Publish serializes quakes and writes them in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, cycleID uuid.UUID, quakes []domain.Earthquake) error {
	if len(quakes) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(quakes))
	for i := range quakes {
		msg, err := serializeToMessage(cycleID, quakes[i])
		if err != nil {
			p.metrics.PublishErrors.Inc()
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.metrics.PublishErrors.Inc()
		return fmt.Errorf("write earthquake messages: %w", err)
	}
	p.metrics.MessagesPublished.Add(float64(len(msgs)))
	p.logger.Debug("published earthquakes", "cycle_id", cycleID, "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an Earthquake into a Kafka message.
func serializeToMessage(cycleID uuid.UUID, eq domain.Earthquake) (kafkago.Message, error) {
	data, err := json.Marshal(eq)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize earthquake: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(messageKey(eq)),
		Value: data,
		Time:  eq.Time(),
		Headers: []kafkago.Header{
			{Key: "cycle_id", Value: []byte(cycleID.String())},
			{Key: "category", Value: []byte(domain.MagnitudeCategoryOf(eq.Magnitude()))},
		},
	}, nil
}

// messageKey is the detail URL, which USGS makes unique per event, or the
// event time and place when the feed gave no URL.
func messageKey(eq domain.Earthquake) string {
	if eq.URL() != "" {
		return eq.URL()
	}
	return strconv.FormatInt(eq.TimeMillis(), 10) + "|" + eq.Place()
}
