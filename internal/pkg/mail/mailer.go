package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachHub/internal/pkg/env"
)

var (
	ErrInvalidConfig = errors.New("mail: invalid config")
	ErrSendFailed    = errors.New("mail: send failed")
)

const (
	DriverSMTP     = "smtp"
	DriverPostmark = "postmark"
	DriverLog      = "log"
)

// Sender delivers a single HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// NewSenderFromEnv builds the sender selected by MAIL_DRIVER. It is meant to
// be called once at startup and passed to whoever sends mail.
func NewSenderFromEnv() (Sender, error) {
	driver := strings.ToLower(strings.TrimSpace(env.GetEnv("MAIL_DRIVER", DriverSMTP)))
	switch driver {
	case DriverSMTP:
		return NewSMTPSender(SMTPConfigFromEnv()), nil
	case DriverPostmark:
		return NewPostmarkSender(PostmarkConfigFromEnv())
	case DriverLog:
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown MAIL_DRIVER %q", ErrInvalidConfig, driver)
	}
}

// LogSender only logs. Used in development when no mail server is around.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	log.Infof("[Mail] (log driver) to=%s subject=%q bytes=%d", to, subject, len(htmlBody))
	return nil
}
