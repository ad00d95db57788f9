// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/facultyeval/internal/platform/ctxutil"
	"github.com/taibuivan/facultyeval/internal/platform/mailer"
	"github.com/taibuivan/facultyeval/internal/platform/sec"
	"github.com/taibuivan/facultyeval/internal/users/notify"
)

type captureSender struct {
	mutex    sync.Mutex
	messages []mailer.Message
	err      error
}

func (sender *captureSender) Send(_ context.Context, message mailer.Message) error {
	sender.mutex.Lock()
	defer sender.mutex.Unlock()
	sender.messages = append(sender.messages, message)
	return sender.err
}

var recipient = notify.Recipient{Email: "k.iyer@university.edu", Name: "Kavya O'Neil", Role: sec.RoleFaculty}

/*
TestNotifier_Messages renders each lifecycle email.
*/
func TestNotifier_Messages(t *testing.T) {
	tests := []struct {
		name     string
		send     func(*notify.Notifier)
		subject  string
		contains []string
	}{
		{
			name:     "verification",
			send:     func(n *notify.Notifier) { n.SendVerification(context.Background(), recipient, "tok123", "K7QX2M") },
			subject:  "Verify your FacultyEval email",
			contains: []string{"https://app.example.edu/verify-email?email=k.iyer%40university.edu&token=tok123", "K7QX2M", "24 hours"},
		},
		{
			name:     "welcome",
			send:     func(n *notify.Notifier) { n.SendWelcome(context.Background(), recipient) },
			subject:  "Welcome to FacultyEval",
			contains: []string{"https://app.example.edu/login"},
		},
		{
			name:     "pending",
			send:     func(n *notify.Notifier) { n.SendFacultyPending(context.Background(), recipient) },
			subject:  "Your faculty account is awaiting approval",
			contains: []string{"administrator will review"},
		},
		{
			name:     "approved",
			send:     func(n *notify.Notifier) { n.SendApproval(context.Background(), recipient) },
			subject:  "Your faculty account was approved",
			contains: []string{"approved"},
		},
		{
			name:     "rejected",
			send:     func(n *notify.Notifier) { n.SendRejection(context.Background(), recipient, "Missing letter") },
			subject:  "Your faculty account request",
			contains: []string{"Reason: Missing letter"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &captureSender{}
			notifier, err := notify.New(sender, "https://app.example.edu/", 24*time.Hour)
			require.NoError(t, err)

			tt.send(notifier)

			require.Len(t, sender.messages, 1)
			message := sender.messages[0]
			assert.Equal(t, recipient.Email, message.To)
			assert.Equal(t, tt.subject, message.Subject)
			assert.Contains(t, message.HTMLBody, "Kavya O&#39;Neil")
			assert.Contains(t, message.TextBody, "Kavya O'Neil")
			for _, fragment := range tt.contains {
				assert.Contains(t, message.TextBody, fragment)
			}
		})
	}
}

/*
TestNotifier_FailureIsLogged never surfaces a delivery error.
*/
func TestNotifier_FailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	ctx := ctxutil.WithLogger(context.Background(), slog.New(slog.NewJSONHandler(&logs, nil)))

	sender := &captureSender{err: errors.New("relay down")}
	notifier, err := notify.New(sender, "https://app.example.edu", 24*time.Hour)
	require.NoError(t, err)

	assert.NotPanics(t, func() { notifier.SendWelcome(ctx, recipient) })
	assert.Contains(t, logs.String(), "notification_send_failed")
	assert.Contains(t, logs.String(), "relay down")
}
