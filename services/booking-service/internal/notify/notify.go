// Package notify delivers messages to appointment participants. Delivery is
// best effort: Notifier.Send reports success and never returns an error or
// panics into the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/metrics"
)

type Notifier interface {
	Send(ctx context.Context, to, subject, body string) bool
}

// Sender is a concrete delivery channel.
type Sender interface {
	Deliver(ctx context.Context, to, subject, body string) error
	Name() string
}

type bestEffort struct {
	sender Sender
	logger *slog.Logger
}

// New wraps sender so that failures are logged and counted instead of returned.
func New(sender Sender, logger *slog.Logger) Notifier {
	return &bestEffort{sender: sender, logger: logger}
}

func (n *bestEffort) Send(ctx context.Context, to, subject, body string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("notification sender panicked", "sender", n.sender.Name(), "panic", fmt.Sprint(r))
			metrics.NotificationsTotal.WithLabelValues(n.sender.Name(), "error").Inc()
			ok = false
		}
	}()

	if to == "" {
		n.logger.Warn("notification skipped: no recipient", "sender", n.sender.Name(), "subject", subject)
		metrics.NotificationsTotal.WithLabelValues(n.sender.Name(), "skipped").Inc()
		return false
	}
	if err := n.sender.Deliver(ctx, to, subject, body); err != nil {
		n.logger.Error("notification failed", "sender", n.sender.Name(), "to", to, "subject", subject, "err", err)
		metrics.NotificationsTotal.WithLabelValues(n.sender.Name(), "error").Inc()
		return false
	}
	metrics.NotificationsTotal.WithLabelValues(n.sender.Name(), "sent").Inc()
	return true
}
