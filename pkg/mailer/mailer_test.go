package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/angelmondragon/grocery-backend/pkg/config"
)

type captureTransport struct {
	sent []*mail.Msg
	err  error
}

func (c *captureTransport) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, messages...)
	return nil
}

func TestSMTPSendBuildsMessage(t *testing.T) {
	tr := &captureTransport{}
	s := newSMTP(tr, "orders@grocery.local", "Grocery Orders", nil)

	err := s.Send(context.Background(), Message{
		To:          "vendor@example.com",
		Subject:     "New order",
		HTMLBody:    "<p>hi</p>",
		Attachments: []Attachment{{Filename: "po.pdf", Data: []byte("%PDF")}},
	})
	require.NoError(t, err)
	require.Len(t, tr.sent, 1)

	to := tr.sent[0].GetTo()
	require.Len(t, to, 1)
	assert.Equal(t, "vendor@example.com", to[0].Address)

	rcpts, err := tr.sent[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"<vendor@example.com>"}, rcpts, "envelope form")
}

func TestSMTPSendRejectsEmptyRecipient(t *testing.T) {
	tr := &captureTransport{}
	s := newSMTP(tr, "orders@grocery.local", "Grocery Orders", nil)
	require.Error(t, s.Send(context.Background(), Message{Subject: "x"}))
	assert.Empty(t, tr.sent)
}

func TestSMTPSendWrapsTransportError(t *testing.T) {
	boom := errors.New("relay refused")
	s := newSMTP(&captureTransport{err: boom}, "orders@grocery.local", "", nil)
	err := s.Send(context.Background(), Message{To: "a@b.c"})
	assert.ErrorIs(t, err, boom)
}

func TestNewSMTPRequiresHost(t *testing.T) {
	_, err := NewSMTP(config.SMTPConfig{}, nil)
	require.Error(t, err)
}

func TestLogSender(t *testing.T) {
	l := NewLog(nil)
	require.NoError(t, l.Send(context.Background(), Message{To: "a@b.c"}))
	require.Error(t, l.Send(context.Background(), Message{}))
}
