// Package notify publishes registration state changes to a message stream
// so other services (mailers, dashboards) can react without polling.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// TopicRegistrationChanged carries a Change for every committed register or
// cancel.
const TopicRegistrationChanged = "registration.changed"

// Change describes one committed state transition.
type Change struct {
	RegistrationID string    `json:"registration_id"`
	UserID         string    `json:"user_id"`
	EventID        string    `json:"event_id"`
	State          string    `json:"state"`
	AvailableSeats int       `json:"available_seats"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher serialises changes onto a watermill publisher.
type Publisher struct {
	pub message.Publisher
}

// NewPublisher wraps pub.
func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

// Publish sends c on TopicRegistrationChanged.
func (p *Publisher) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_id", c.EventID)
	msg.Metadata.Set("state", c.State)
	msg.SetContext(ctx)

	if err := p.pub.Publish(TopicRegistrationChanged, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TopicRegistrationChanged, err)
	}
	return nil
}

// Close closes the underlying publisher.
func (p *Publisher) Close() error {
	return p.pub.Close()
}

// NewRedisStream returns a publisher backed by Redis streams.
func NewRedisStream(client redis.UniversalClient, logger *slog.Logger) (message.Publisher, error) {
	pub, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: client},
		NewLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create redis stream publisher: %w", err)
	}
	return pub, nil
}

// NewInProcess returns an in-process pub/sub. Messages published with no
// subscriber are dropped.
func NewInProcess(logger *slog.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, NewLogger(logger))
}

// Decode parses a message published by Publisher.
func Decode(msg *message.Message) (Change, error) {
	var c Change
	if err := json.Unmarshal(msg.Payload, &c); err != nil {
		return Change{}, fmt.Errorf("unmarshal change: %w", err)
	}
	return c, nil
}
