package alerts

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSendMail(t *testing.T, fn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) {
	t.Helper()
	orig := sendMail
	sendMail = fn
	t.Cleanup(func() { sendMail = orig })
}

func TestMailer_Notify(t *testing.T) {
	var (
		gotAddr string
		gotAuth smtp.Auth
		gotTo   []string
		gotMsg  string
	)
	stubSendMail(t, func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	})

	m := NewMailer(MailConfig{
		Addr: "mail.test:587", User: "u", Password: "p",
		From: "lock@test", To: []string{"admin@test", "sec@test"},
	})
	a := Alert{ID: "a1", Label: "alice", At: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), SnapshotURL: "https://snap"}

	require.NoError(t, m.Notify(context.Background(), a, []byte("jpegdata")))

	assert.Equal(t, "mail.test:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, []string{"admin@test", "sec@test"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: VisionLock lockout: alice")
	assert.Contains(t, gotMsg, "To: admin@test, sec@test")
	assert.Contains(t, gotMsg, "Snapshot: https://snap")
	assert.Contains(t, gotMsg, `filename="a1.jpg"`)
	assert.Contains(t, gotMsg, "anBlZ2RhdGE=")
	assert.True(t, strings.Contains(gotMsg, "multipart/mixed"))
}

func TestMailer_NoAuthWithoutUser(t *testing.T) {
	var gotAuth smtp.Auth = smtp.PlainAuth("", "x", "y", "z")
	stubSendMail(t, func(_ string, a smtp.Auth, _ string, _ []string, _ []byte) error {
		gotAuth = a
		return nil
	})

	m := NewMailer(MailConfig{Addr: "relay:25", From: "f@test", To: []string{"t@test"}})
	require.NoError(t, m.Notify(context.Background(), Alert{Label: "unknown"}, nil))
	assert.Nil(t, gotAuth)
}

func TestMailer_Errors(t *testing.T) {
	boom := errors.New("550")
	stubSendMail(t, func(string, smtp.Auth, string, []string, []byte) error { return boom })

	m := NewMailer(MailConfig{Addr: "relay:25", To: []string{"t@test"}})
	assert.ErrorIs(t, m.Notify(context.Background(), Alert{}, nil), boom)

	m = NewMailer(MailConfig{Addr: "relay:25"})
	assert.Error(t, m.Notify(context.Background(), Alert{}, nil))

	m = NewMailer(MailConfig{Addr: "no-port", User: "u", To: []string{"t@test"}})
	assert.Error(t, m.Notify(context.Background(), Alert{}, nil))
}

func TestMailer_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	stubSendMail(t, func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMailer(MailConfig{Addr: "relay:25", To: []string{"t@test"}})
	assert.ErrorIs(t, m.Notify(ctx, Alert{}, nil), context.Canceled)
}
