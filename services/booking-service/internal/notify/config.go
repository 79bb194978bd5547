package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
)

type Config struct {
	Provider     string
	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUser     string
	SMTPPassword string
	WebhookURL   string
	WebhookToken string
}

func ConfigFromEnv() Config {
	return Config{
		Provider:     strings.ToLower(config.String("NOTIFY_PROVIDER", "log")),
		SMTPHost:     config.String("SMTP_HOST", "localhost"),
		SMTPPort:     config.String("SMTP_PORT", "1025"),
		SMTPFrom:     config.String("SMTP_FROM", "no-reply@clinicbook.local"),
		SMTPUser:     config.String("SMTP_USERNAME", ""),
		SMTPPassword: config.String("SMTP_PASSWORD", ""),
		WebhookURL:   config.String("NOTIFY_WEBHOOK_URL", ""),
		WebhookToken: config.String("NOTIFY_WEBHOOK_TOKEN", ""),
	}
}

func FromConfig(cfg Config, logger *slog.Logger) (Notifier, error) {
	var sender Sender
	switch cfg.Provider {
	case "smtp":
		sender = NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPassword)
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("NOTIFY_WEBHOOK_URL is required for the webhook provider")
		}
		sender = NewWebhookSender(cfg.WebhookURL, cfg.WebhookToken)
	case "", "log":
		sender = NewLogSender(logger)
	default:
		return nil, fmt.Errorf("unknown notify provider %q", cfg.Provider)
	}
	logger.Info("notifications enabled", "sender", sender.Name())
	return New(sender, logger), nil
}

// Recorder keeps every message in memory. Fail makes subsequent sends report
// failure for the given recipient.
type Recorder struct {
	mu     sync.Mutex
	sent   []Sent
	failTo map[string]bool
}

type Sent struct {
	To      string
	Subject string
	Body    string
}

func NewRecorder() *Recorder {
	return &Recorder{failTo: map[string]bool{}}
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Deliver(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failTo[to] {
		return fmt.Errorf("delivery to %s refused", to)
	}
	r.sent = append(r.sent, Sent{To: to, Subject: subject, Body: body})
	return nil
}

func (r *Recorder) Fail(to string, fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failTo[to] = fail
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Count returns how many messages with subject went to to.
func (r *Recorder) Count(to, subject string) int {
	n := 0
	for _, s := range r.Sent() {
		if s.To == to && s.Subject == subject {
			n++
		}
	}
	return n
}
