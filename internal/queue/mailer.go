package queue

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer delivers a plain text message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends through an authenticated SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	if from == "" {
		from = user
	}
	return &SMTPMailer{Host: host, Port: port, User: user, Password: password, From: from, sendMail: smtp.SendMail}
}

// Send performs the SMTP handshake and delivery.  net/smtp has no context
// support, so ctx is only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Password, m.Host)
	}
	if err := m.sendMail(addr, auth, m.From, []string{to}, buildMessage(m.From, to, subject, body)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// buildMessage lays out RFC 822 headers, a blank line and the body, all
// CRLF separated.
func buildMessage(from, to, subject, body string) []byte {
	lines := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}
	return []byte(strings.Join(lines, "\r\n"))
}

// composeCodeEmail renders the reset-code email for ev.
func composeCodeEmail(appName string, ev OTPIssuedEvent, minutesLeft int) (subject, body string) {
	name := ev.DisplayName
	if name == "" {
		name = "there"
	}
	subject = fmt.Sprintf("%s - Your Password Reset Code", appName)
	body = fmt.Sprintf(
		"Hello %s,\n\n"+
			"We received a request to reset your %s password. Use the code below to continue:\n\n"+
			"Reset Code: %s\n\n"+
			"This code will expire in %d minutes. If you did not request a reset, you can ignore this email.\n\n"+
			"Best regards,\nThe %s Team",
		name, appName, ev.Code, minutesLeft, appName)
	return subject, body
}
