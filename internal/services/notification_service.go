// internal/services/notification_service.go
package services

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/openbid/auction-backend/internal/config"
)

// Event types emitted by the bidding engine, the scheduler and the
// settlement state machine.
const (
	EventBidConfirmed       = "bid.confirmed"
	EventOutbid             = "bid.outbid"
	EventPriceUpdated       = "auction.price_updated"
	EventAuctionExtended    = "auction.extended"
	EventAuctionWon         = "auction.won"
	EventAuctionSold        = "auction.sold"
	EventAuctionFailed      = "auction.failed"
	EventBidderRejected     = "auction.bidder_rejected"
	EventDescriptionUpdated = "auction.description_updated"
	EventSettlementAdvanced = "settlement.advanced"
	EventRatingReceived     = "settlement.rating_received"
)

// Event is the outbound notification record. Delivery and formatting live
// behind the queue; the core only writes these.
type Event struct {
	Type          string                 `json:"type"`
	RecipientID   uuid.UUID              `json:"recipient_id"`
	AuctionID     uuid.UUID              `json:"auction_id,omitempty"`
	TransactionID uuid.UUID              `json:"transaction_id,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// EventPublisher is the outbound port the core writes notification events to.
type EventPublisher interface {
	Publish(event Event) error
}

type NotificationService struct {
	publisher EventPublisher
}

func NewNotificationService(publisher EventPublisher) *NotificationService {
	return &NotificationService{publisher: publisher}
}

// Emit dispatches an event off the critical path. Publish failures are
// logged and swallowed; they never fail the owning database transaction.
func (s *NotificationService) Emit(events ...Event) {
	for _, event := range events {
		go func(e Event) {
			if err := s.publisher.Publish(e); err != nil {
				logrus.WithFields(logrus.Fields{
					"event":     e.Type,
					"recipient": e.RecipientID,
				}).WithError(err).Warn("Failed to publish notification event")
			}
		}(event)
	}
}

// AMQPPublisher publishes events as JSON to a durable topic exchange, routing
// key per event type.
type AMQPPublisher struct {
	ch       *amqp.Channel
	exchange string
}

func NewAMQPPublisher(cfg config.AMQPConfig) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	return &AMQPPublisher{ch: ch, exchange: cfg.Exchange}, nil
}

func (p *AMQPPublisher) Publish(event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.ch.Publish(
		p.exchange,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to exchange %s: %w", p.exchange, err)
	}

	return nil
}

// LogPublisher stands in when no AMQP broker is configured (local
// development); events land in the structured log instead.
type LogPublisher struct{}

func (LogPublisher) Publish(event Event) error {
	logrus.WithFields(logrus.Fields{
		"event":          event.Type,
		"recipient":      event.RecipientID,
		"auction_id":     event.AuctionID,
		"transaction_id": event.TransactionID,
	}).Info("Notification event")
	return nil
}
