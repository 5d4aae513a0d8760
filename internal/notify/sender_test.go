package notify

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/require"

	"bizportal/internal/config"
)

func sampleNotice() Notice {
	return Notice{
		To:                 "owner@example.com",
		QuestionnaireTitle: "Client intake",
		QuestionnaireSlug:  "intake",
		SubmissionID:       "sub-1",
		SubmittedAt:        time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
		ClientIP:           "203.0.113.5",
		Fields: []Field{
			{Label: "Name", Value: "Jürgen"},
			{Label: "Phone", Value: ""},
		},
	}
}

func TestComposeProducesParseableMessage(t *testing.T) {
	raw, err := Compose("Portal <noreply@example.com>", sampleNotice())
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	require.Equal(t, "New submission: Client intake", subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	require.Equal(t, "owner@example.com", to[0].Address)

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Name: Jürgen")
	require.Contains(t, string(body), "Phone: -")
	require.Contains(t, string(body), "sub-1")
}

func TestComposeRejectsBadRecipient(t *testing.T) {
	n := sampleNotice()
	n.To = "not an address"
	_, err := Compose("noreply@example.com", n)
	require.Error(t, err)
}

func TestNewSenderSelectsImplementation(t *testing.T) {
	_, ok := NewSender(config.Config{NotifySender: "log"}, nil).(LogSender)
	require.True(t, ok)
	_, ok = NewSender(config.Config{NotifySender: "smtp", SMTPHost: "127.0.0.1", SMTPPort: 25}, nil).(SMTPSender)
	require.True(t, ok)

	require.NoError(t, LogSender{}.SendSubmissionNotice(context.Background(), sampleNotice()))
}
