// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mailer delivers outbound email.

It is the only place that knows how a message leaves the process. Callers see
the small [Sender] interface and receive it through their constructor, so the
account lifecycle code can run against a fake in tests and against the log
sender in development.

Implementations:

  - SMTPSender: gomail over STARTTLS, one connection per message.
  - LogSender: writes the message summary to the structured log.
*/
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// ErrNoRecipient is returned when a message has no address to deliver to.
var ErrNoRecipient = errors.New("mailer: no recipient specified")

// Message is a single outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// # SMTP

// SMTPConfig holds the SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender implements [Sender] with gomail.
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
}

// NewSMTPSender creates an SMTP-backed Sender.
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{
		from:   config.From,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}
}

// Send delivers the message. gomail has no context support, so cancellation
// is honoured only before dialing.
func (sender *SMTPSender) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gomailMessage, err := sender.build(message)
	if err != nil {
		return err
	}

	if err := sender.dialer.DialAndSend(gomailMessage); err != nil {
		return fmt.Errorf("mailer: smtp send failed: %w", err)
	}

	return nil
}

// build converts a [Message] into a gomail message with an HTML part and an
// optional plain-text alternative.
func (sender *SMTPSender) build(message Message) (*gomail.Message, error) {
	if message.To == "" {
		return nil, ErrNoRecipient
	}

	gomailMessage := gomail.NewMessage()
	gomailMessage.SetHeader("From", sender.from)
	gomailMessage.SetHeader("To", message.To)
	gomailMessage.SetHeader("Subject", message.Subject)

	if message.HTMLBody != "" {
		gomailMessage.SetBody("text/html", message.HTMLBody)
		if message.TextBody != "" {
			gomailMessage.AddAlternative("text/plain", message.TextBody)
		}
	} else {
		gomailMessage.SetBody("text/plain", message.TextBody)
	}

	return gomailMessage, nil
}

// # Log

// LogSender implements [Sender] by logging the message summary.
// It never fails for a message with a recipient.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a Sender that only logs.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the recipient and subject. Bodies are not logged; they carry
// verification credentials.
func (sender *LogSender) Send(ctx context.Context, message Message) error {
	if message.To == "" {
		return ErrNoRecipient
	}

	sender.logger.InfoContext(ctx, "email_logged_not_sent",
		slog.String("to", message.To),
		slog.String("subject", message.Subject),
		slog.Int("html_bytes", len(message.HTMLBody)),
	)
	return nil
}
