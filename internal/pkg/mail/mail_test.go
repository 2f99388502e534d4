package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CoachHub/internal/pkg/env"
)

func TestRenderSubscriptionExpiring(t *testing.T) {
	body, err := Render(TemplateSubscriptionExpiring, ExpiringData{
		SubscriberName: "Ulla",
		CoachName:      "Carl <Coach>",
		Plan:           "monthly",
		EndDate:        "2024-02-01",
		GraceEndDate:   "2024-02-08",
	})

	require.NoError(t, err)
	assert.Contains(t, body, "Hi Ulla,")
	assert.Contains(t, body, "2024-02-08")
	assert.Contains(t, body, "Carl &lt;Coach&gt;")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("does_not_exist", nil)
	assert.Error(t, err)
}

func TestSMTPSenderBuildsHTMLMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mail.local", Port: "2525", Sender: "noreply@coachhub.test"})
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, s.Send(context.Background(), "ulla@example.com", "Your subscription", "<p>hi</p>"))

	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "noreply@coachhub.test", gotFrom)
	assert.Equal(t, []string{"ulla@example.com"}, gotTo)
	msg := string(gotMsg)
	assert.True(t, strings.HasPrefix(msg, "From: noreply@coachhub.test\r\nTo: ulla@example.com\r\nSubject: Your subscription\r\n"))
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>hi</p>")
}

func TestSMTPSenderWrapsFailure(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mail.local", Port: "25"})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("421 try later")
	}

	err := s.Send(context.Background(), "ulla@example.com", "s", "b")
	assert.ErrorIs(t, err, ErrSendFailed)
}

func TestNewPostmarkSenderRequiresToken(t *testing.T) {
	_, err := NewPostmarkSender(PostmarkConfig{Sender: "noreply@coachhub.test"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s, err := NewPostmarkSender(PostmarkConfig{ServerToken: "server", Sender: "noreply@coachhub.test"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestNewSenderFromEnv(t *testing.T) {
	env.Env = map[string]string{"MAIL_DRIVER": "log"}
	defer func() { env.Env = nil }()

	s, err := NewSenderFromEnv()
	require.NoError(t, err)
	assert.IsType(t, LogSender{}, s)

	env.Env["MAIL_DRIVER"] = "pigeon"
	_, err = NewSenderFromEnv()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
