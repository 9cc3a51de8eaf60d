// Package listingevents consumes listing lifecycle events from RabbitMQ and
// posts newly created listings to the channel.
package listingevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackmichael/listing-bot/internal/domain"
	"github.com/rabbitmq/amqp091-go"
)

const (
	// RoutingKey is the routing key of listing creation events.
	RoutingKey = "listing.created"

	consumerTag    = "listing-bot"
	reconnectDelay = 5 * time.Second
)

// Config configures a Subscriber.
type Config struct {
	// URL is the AMQP connection URL.
	URL string

	// Exchange is the topic exchange listing events are published to.
	Exchange string

	// Queue is the durable queue this service consumes from.
	Queue string
}

// Subscriber consumes listing.created events and posts each listing once.
type Subscriber struct {
	cfg            Config
	channelService *domain.ChannelService
	logger         *slog.Logger
}

// NewSubscriber creates a new listing event subscriber.
func NewSubscriber(cfg Config, channelService *domain.ChannelService, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		cfg:            cfg,
		channelService: channelService,
		logger:         logger,
	}
}

// Start connects to the broker and processes events until the context is
// cancelled. It reconnects after connection errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("listing events connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
				}
			}
		}
	}
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	conn, err := amqp091.DialConfig(s.cfg.URL, amqp091.Config{
		Properties: amqp091.Table{"connection_name": consumerTag},
	})
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(s.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", s.cfg.Exchange, err)
	}
	q, err := ch.QueueDeclare(s.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", s.cfg.Queue, err)
	}
	if err := ch.QueueBind(q.Name, RoutingKey, s.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}
	closed := conn.NotifyClose(make(chan *amqp091.Error, 1))

	s.logger.Info("consuming listing events", "exchange", s.cfg.Exchange, "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return fmt.Errorf("connection closed: %w", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			s.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery posts the listing carried by d. Every delivery is settled
// after a single attempt: posts are not retried, and undecodable events are
// rejected without requeueing.
func (s *Subscriber) handleDelivery(ctx context.Context, d amqp091.Delivery) {
	var listing domain.Listing
	if err := json.Unmarshal(d.Body, &listing); err != nil {
		s.logger.Error("failed to parse listing event", "delivery_tag", d.DeliveryTag, "error", err)
		s.settle(d.Reject(false), d)
		return
	}
	if err := listing.Validate(); err != nil {
		s.logger.Error("rejecting listing event", "listing_id", listing.ID, "error", err)
		s.settle(d.Reject(false), d)
		return
	}

	result := s.channelService.PostListing(ctx, &listing)
	switch {
	case result.Skipped():
		s.logger.Warn("telegram not configured, listing event dropped", "listing_id", listing.ID)
	case !result.Success():
		s.logger.Error("posting listing event failed", "listing_id", listing.ID, "error", result.Error)
	}
	s.settle(d.Ack(false), d)
}

func (s *Subscriber) settle(err error, d amqp091.Delivery) {
	if err != nil {
		s.logger.Error("failed to settle delivery", "delivery_tag", d.DeliveryTag, "error", err)
	}
}
