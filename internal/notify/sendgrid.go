package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGridMailer delivers through the SendGrid v3 mail API.
type SendGridMailer struct {
	key    string
	host   string
	from   *sgmail.Email
	logger *slog.Logger
}

func NewSendGridMailer(key, fromName, fromEmail string, logger *slog.Logger) *SendGridMailer {
	return &SendGridMailer{
		key:    key,
		host:   sendgridHost,
		from:   sgmail.NewEmail(fromName, fromEmail),
		logger: logger,
	}
}

// WithHost points the mailer at another API host.
func (s *SendGridMailer) WithHost(host string) *SendGridMailer {
	s.host = host
	return s
}

func (s *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if !msg.HasRecipients() {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email: status %d: %s", res.StatusCode, res.Body)
	}

	s.logger.Info("email sent", "subject", msg.Subject, "recipients", len(msg.To))
	return nil
}

func (s *SendGridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}
