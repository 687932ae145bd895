package notify

import (
	"context"
	"log/slog"
	"sync"
)

// LogMailer writes messages to the log instead of sending them. It is used
// when no SendGrid key is configured and keeps what it logged.
type LogMailer struct {
	mu     sync.Mutex
	sent   []Message
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Send(_ context.Context, msg Message) error {
	if !msg.HasRecipients() {
		return ErrNoRecipients
	}
	l.mu.Lock()
	l.sent = append(l.sent, msg)
	l.mu.Unlock()

	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, addr.Address)
	}
	l.logger.Info("email (not sent)", "to", to, "subject", msg.Subject)
	return nil
}

// Sent returns a copy of the logged messages.
func (l *LogMailer) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.sent...)
}
