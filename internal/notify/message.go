// Package notify renders and sends transactional email.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	texttmpl "text/template"
)

//go:embed templates/*
var templateFS embed.FS

var (
	textTemplates = texttmpl.Must(texttmpl.New("").Option("missingkey=error").ParseFS(templateFS, "templates/*.txt"))
	htmlTemplates = htmltmpl.Must(htmltmpl.New("").Option("missingkey=error").ParseFS(templateFS, "templates/*.gohtml"))
)

var ErrNoRecipients = errors.New("message has no recipients")

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To      []mail.Address
	Subject string
	Text    string
	HTML    string
}

func (m *Message) HasRecipients() bool { return len(m.To) > 0 }
func (m *Message) HasContent() bool    { return m.Text != "" || m.HTML != "" }

// render fills Text and HTML from the named template pair.
func (m *Message) render(name string, data interface{}) error {
	var text bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return fmt.Errorf("rendering %s text: %w", name, err)
	}
	var html bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name+".gohtml", data); err != nil {
		return fmt.Errorf("rendering %s html: %w", name, err)
	}
	m.Text = text.String()
	m.HTML = html.String()
	return nil
}

type InvitationData struct {
	InviteeName string
	InviterName string
	TeamName    string
	AcceptURL   string
}

func TeamInvitation(to mail.Address, data InvitationData) (Message, error) {
	msg := Message{
		To:      []mail.Address{to},
		Subject: fmt.Sprintf("%s invited you to %s", data.InviterName, data.TeamName),
	}
	if err := msg.render("team_invitation", data); err != nil {
		return Message{}, err
	}
	return msg, nil
}

type UsageData struct {
	Day           string
	NewUsers      int64
	NewProjects   int64
	NewPlaylists  int64
	NewActivities int64
	Publications  int64
}

func UsageReport(to []mail.Address, data UsageData) (Message, error) {
	msg := Message{
		To:      to,
		Subject: "Daily usage report for " + data.Day,
	}
	if err := msg.render("usage_report", data); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// ParseRecipients turns configured addresses into mail addresses, skipping
// any that do not parse.
func ParseRecipients(raw []string) []mail.Address {
	var out []mail.Address
	for _, r := range raw {
		addr, err := mail.ParseAddress(r)
		if err != nil {
			continue
		}
		out = append(out, *addr)
	}
	return out
}
