// internal/notifier/notifier.go
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/smtp"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/openbid/auction-backend/internal/config"
	"github.com/openbid/auction-backend/internal/models"
	"github.com/openbid/auction-backend/internal/services"
)

// Consumer drains the notification event queue and dispatches email. It runs
// outside the request path; a dead broker or SMTP outage never touches the
// auction core.
type Consumer struct {
	db     *gorm.DB
	config *config.Config
	ch     *amqp.Channel
}

func NewConsumer(db *gorm.DB, cfg *config.Config) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.AMQP.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.AMQP.Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.AMQP.Queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	// One queue sees every event type.
	if err := ch.QueueBind(cfg.AMQP.Queue, "#", cfg.AMQP.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	return &Consumer{db: db, config: cfg, ch: ch}, nil
}

// Run consumes events until the channel closes.
func (c *Consumer) Run() error {
	msgs, err := c.ch.Consume(c.config.AMQP.Queue, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	logrus.WithField("queue", c.config.AMQP.Queue).Info("Notification consumer started")

	for d := range msgs {
		var event services.Event
		if err := json.Unmarshal(d.Body, &event); err != nil {
			logrus.WithError(err).Warn("Discarding malformed notification event")
			continue
		}
		if err := c.dispatch(event); err != nil {
			logrus.WithFields(logrus.Fields{
				"event":     event.Type,
				"recipient": event.RecipientID,
			}).WithError(err).Warn("Failed to dispatch notification")
		}
	}

	return nil
}

func (c *Consumer) dispatch(event services.Event) error {
	var recipient models.User
	if err := c.db.First(&recipient, event.RecipientID).Error; err != nil {
		return fmt.Errorf("failed to load recipient: %w", err)
	}

	subject, body, err := c.render(event, &recipient)
	if err != nil {
		return err
	}

	return c.sendEmail(recipient.Email, subject, body)
}

var emailTemplates = map[string]struct {
	Subject string
	Body    string
}{
	services.EventBidConfirmed: {
		Subject: "Bid confirmed",
		Body:    `<p>Hi {{.Username}},</p><p>Your bid was recorded. The auction price is now {{.Price}}.</p>`,
	},
	services.EventOutbid: {
		Subject: "You have been outbid",
		Body:    `<p>Hi {{.Username}},</p><p>Another bidder passed your maximum. The price is now {{.Price}}. Raise your maximum to stay in the race.</p>`,
	},
	services.EventPriceUpdated: {
		Subject: "New bid on your auction",
		Body:    `<p>Hi {{.Username}},</p><p>Your auction received a bid. The price is now {{.Price}}.</p>`,
	},
	services.EventAuctionExtended: {
		Subject: "Auction extended",
		Body:    `<p>Hi {{.Username}},</p><p>A late bid extended the closing time of your auction.</p>`,
	},
	services.EventAuctionWon: {
		Subject: "You won the auction",
		Body:    `<p>Congratulations {{.Username}},</p><p>You won the auction. Open the transaction page to start checkout.</p>`,
	},
	services.EventAuctionSold: {
		Subject: "Your auction sold",
		Body:    `<p>Hi {{.Username}},</p><p>Your auction closed with a winner. Checkout is waiting for the buyer.</p>`,
	},
	services.EventAuctionFailed: {
		Subject: "Your auction ended without bids",
		Body:    `<p>Hi {{.Username}},</p><p>Your auction closed without any bids. You can relist it at any time.</p>`,
	},
	services.EventBidderRejected: {
		Subject: "Removed from an auction",
		Body:    `<p>Hi {{.Username}},</p><p>The seller removed you from an auction. Your bids there no longer count.</p>`,
	},
	services.EventDescriptionUpdated: {
		Subject: "Auction description updated",
		Body:    `<p>Hi {{.Username}},</p><p>The seller added details to an auction you are leading.</p>`,
	},
	services.EventSettlementAdvanced: {
		Subject: "Checkout update",
		Body:    `<p>Hi {{.Username}},</p><p>Your transaction moved forward. Open the transaction page for the next step.</p>`,
	},
	services.EventRatingReceived: {
		Subject: "New feedback received",
		Body:    `<p>Hi {{.Username}},</p><p>You received new feedback on a completed transaction.</p>`,
	},
}

func (c *Consumer) render(event services.Event, recipient *models.User) (string, string, error) {
	tpl, ok := emailTemplates[event.Type]
	if !ok {
		return "", "", fmt.Errorf("no template for event type %s", event.Type)
	}

	data := map[string]interface{}{
		"Username": recipient.Username,
	}
	if price, ok := event.Payload["price"]; ok {
		data["Price"] = price
	}

	t, err := template.New("email").Parse(tpl.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse email template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render email template: %w", err)
	}

	return tpl.Subject, buf.String(), nil
}

func (c *Consumer) sendEmail(to, subject, body string) error {
	cfg := c.config.Email
	if cfg.SMTPUsername == "" {
		logrus.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("SMTP not configured, skipping email")
		return nil
	}

	auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)

	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		cfg.FromName, cfg.FromEmail, to, subject, body)

	addr := cfg.SMTPHost + ":" + cfg.SMTPPort
	if err := smtp.SendMail(addr, auth, cfg.FromEmail, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
