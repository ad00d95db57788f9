// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify renders and sends the account lifecycle emails.

Every Send method is fire-and-forget: a delivery failure is logged as
notification_send_failed and never returned, so a broken mail relay cannot
undo the signup, verification or review that triggered the message.
*/
package notify

import (
	"bytes"
	"context"
	"embed"
	htmltemplate "html/template"
	"log/slog"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/taibuivan/facultyeval/internal/platform/constants"
	"github.com/taibuivan/facultyeval/internal/platform/ctxutil"
	"github.com/taibuivan/facultyeval/internal/platform/mailer"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
)

//go:embed templates/*
var templateFS embed.FS

// Message kinds. Each names a "<kind>.content" HTML block and a "<kind>" text template.
const (
	kindVerification = "verification"
	kindWelcome      = "welcome"
	kindPending      = "pending"
	kindApproved     = "approved"
	kindRejected     = "rejected"
)

var subjects = map[string]string{
	kindVerification: "Verify your FacultyEval email",
	kindWelcome:      "Welcome to FacultyEval",
	kindPending:      "Your faculty account is awaiting approval",
	kindApproved:     "Your faculty account was approved",
	kindRejected:     "Your faculty account request",
}

// Recipient identifies who a message is addressed to.
type Recipient struct {
	Email string
	Name  string
	Role  sec.UserRole
}

// data is the template context shared by every message.
type data struct {
	Name           string
	Role           sec.UserRole
	Link           string
	Code           string
	Reason         string
	ExpiresInHours int
}

// Notifier renders lifecycle emails and hands them to a [mailer.Sender].
type Notifier struct {
	sender  mailer.Sender
	baseURL string
	pages   map[string]*htmltemplate.Template
	texts   *texttemplate.Template
	ttl     time.Duration
}

/*
New parses the embedded templates.

Parameters:
  - sender: mailer.Sender
  - baseURL: string (front-end origin for links)
  - verificationTTL: time.Duration (shown in the verification email)

Returns:
  - *Notifier
  - error: Template parse failures
*/
func New(sender mailer.Sender, baseURL string, verificationTTL time.Duration) (*Notifier, error) {
	layout, err := htmltemplate.ParseFS(templateFS, "templates/emails.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*htmltemplate.Template, len(subjects))
	for kind := range subjects {
		page, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := page.New("content").Parse(`{{template "` + kind + `.content" .}}`); err != nil {
			return nil, err
		}
		pages[kind] = page
	}

	texts, err := texttemplate.ParseFS(templateFS, "templates/emails.txt")
	if err != nil {
		return nil, err
	}

	return &Notifier{
		sender:  sender,
		baseURL: strings.TrimRight(baseURL, "/"),
		pages:   pages,
		texts:   texts,
		ttl:     verificationTTL,
	}, nil
}

// # Lifecycle Messages

// SendVerification delivers the link token and the fallback code.
func (notifier *Notifier) SendVerification(ctx context.Context, to Recipient, token, code string) {
	link := notifier.baseURL + "/verify-email?" + url.Values{"email": {to.Email}, "token": {token}}.Encode()
	notifier.send(ctx, kindVerification, to, data{
		Link:           link,
		Code:           code,
		ExpiresInHours: int(notifier.ttl.Hours()),
	})
}

// SendWelcome tells a verified student they can log in.
func (notifier *Notifier) SendWelcome(ctx context.Context, to Recipient) {
	notifier.send(ctx, kindWelcome, to, data{Link: notifier.baseURL + "/login"})
}

// SendFacultyPending tells a verified faculty member that review is pending.
func (notifier *Notifier) SendFacultyPending(ctx context.Context, to Recipient) {
	notifier.send(ctx, kindPending, to, data{})
}

// SendApproval tells a faculty member they can log in.
func (notifier *Notifier) SendApproval(ctx context.Context, to Recipient) {
	notifier.send(ctx, kindApproved, to, data{Link: notifier.baseURL + "/login"})
}

// SendRejection tells a faculty member the request was declined and why.
func (notifier *Notifier) SendRejection(ctx context.Context, to Recipient, reason string) {
	notifier.send(ctx, kindRejected, to, data{Reason: reason})
}

func (notifier *Notifier) send(ctx context.Context, kind string, to Recipient, payload data) {
	logger := ctxutil.GetLogger(ctx).With(
		slog.String("kind", kind),
		slog.String("role", string(to.Role)),
	)

	payload.Name = to.Name
	payload.Role = to.Role

	var html, text bytes.Buffer
	if err := notifier.pages[kind].ExecuteTemplate(&html, "layout", payload); err != nil {
		logger.Error("notification_render_failed", slog.Any("error", err))
		return
	}
	if err := notifier.texts.ExecuteTemplate(&text, kind, payload); err != nil {
		logger.Error("notification_render_failed", slog.Any("error", err))
		return
	}

	// The request may finish before the relay answers.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.NotificationTimeout)
	defer cancel()

	err := notifier.sender.Send(sendCtx, mailer.Message{
		To:       to.Email,
		Subject:  subjects[kind],
		HTMLBody: html.String(),
		TextBody: text.String(),
	})
	if err != nil {
		logger.Error("notification_send_failed", slog.Any("error", err))
		return
	}

	logger.Debug("notification_sent")
}
