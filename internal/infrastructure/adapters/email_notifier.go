package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
)

// EmailNotifierConfig holds the notifier's delivery settings
type EmailNotifierConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	// OpsEmail receives low-pool operator alerts
	OpsEmail string
}

// EmailNotifier delivers wallet-assignment and pool alerts through SendGrid.
// Delivery is best effort by contract: callers log and swallow errors, so a
// mail outage never affects allocation or release flow.
type EmailNotifier struct {
	logger *zap.Logger
	config EmailNotifierConfig
	client *sendgrid.Client
}

// NewEmailNotifier creates the notifier. With no API key configured it runs
// disabled and only logs what it would have sent.
func NewEmailNotifier(config EmailNotifierConfig, logger *zap.Logger) *EmailNotifier {
	var client *sendgrid.Client
	if strings.TrimSpace(config.APIKey) != "" {
		client = sendgrid.NewSendClient(config.APIKey)
	} else {
		logger.Info("Email notifier running disabled: no API key configured")
	}

	return &EmailNotifier{
		logger: logger,
		config: config,
		client: client,
	}
}

// NotifyWalletAssigned tells a waiting order's owner that a deposit address
// became available for them.
func (n *EmailNotifier) NotifyWalletAssigned(ctx context.Context, entry *entities.QueueEntry, address string) error {
	recipient := recipientFor(entry)
	if recipient == "" {
		n.logger.Debug("No deliverable recipient for queued order, skipping notification",
			zap.String("order_id", entry.OrderID))
		return nil
	}

	subject := fmt.Sprintf("Deposit address ready for your %s order", entry.Currency)
	text := fmt.Sprintf(
		"A deposit address has been assigned to your pending %s order.\n\nAddress: %s\n\nPlease complete your deposit.",
		entry.Currency, address)
	html := fmt.Sprintf(
		"<p>A deposit address has been assigned to your pending <strong>%s</strong> order.</p><p>Address: <code>%s</code></p><p>Please complete your deposit.</p>",
		entry.Currency, address)

	return n.send(ctx, recipient, subject, text, html)
}

// NotifyLowPool alerts operations that a currency pool dropped below its
// configured minimum.
func (n *EmailNotifier) NotifyLowPool(ctx context.Context, status entities.ThresholdStatus) error {
	if n.config.OpsEmail == "" {
		n.logger.Debug("No ops email configured, skipping low-pool alert",
			zap.String("currency", string(status.Currency)))
		return nil
	}

	subject := fmt.Sprintf("[%s] wallet pool below threshold", status.Currency)
	text := fmt.Sprintf(
		"Available %s wallets: %d (threshold %d). Provision new deposit addresses.",
		status.Currency, status.Available, status.Threshold)
	html := fmt.Sprintf(
		"<p>Available <strong>%s</strong> wallets: <strong>%d</strong> (threshold %d).</p><p>Provision new deposit addresses.</p>",
		status.Currency, status.Available, status.Threshold)

	return n.send(ctx, n.config.OpsEmail, subject, text, html)
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, text, html string) error {
	if n.client == nil {
		n.logger.Info("Email notifier disabled, dropping message",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	from := mail.NewEmail(n.config.FromName, n.config.FromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), text, html)

	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}

	n.logger.Debug("Notification email sent",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

// recipientFor resolves the deliverable address for a queue entry. User
// contact management lives outside this service, so the entry's user field
// is used when it already carries an email.
func recipientFor(entry *entities.QueueEntry) string {
	if strings.Contains(entry.UserID, "@") {
		return entry.UserID
	}
	return ""
}
