package mail

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mrz1836/postmark"

	"github.com/ManuelReschke/CoachHub/internal/pkg/env"
)

// PostmarkConfig holds Postmark API credentials.
type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	Sender       string
	ReplyTo      string
}

// PostmarkConfigFromEnv reads POSTMARK_* settings; the sender falls back to SMTP_SENDER.
func PostmarkConfigFromEnv() PostmarkConfig {
	return PostmarkConfig{
		ServerToken:  env.GetEnv("POSTMARK_SERVER_TOKEN", ""),
		AccountToken: env.GetEnv("POSTMARK_ACCOUNT_TOKEN", ""),
		Sender:       env.GetEnv("MAIL_SENDER", env.GetEnv("SMTP_SENDER", "")),
		ReplyTo:      env.GetEnv("MAIL_REPLY_TO", ""),
	}
}

// PostmarkSender sends through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client
	cfg    PostmarkConfig
}

func NewPostmarkSender(cfg PostmarkConfig) (*PostmarkSender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: POSTMARK_SERVER_TOKEN is required", ErrInvalidConfig)
	}
	if cfg.Sender == "" {
		return nil, fmt.Errorf("%w: MAIL_SENDER is required", ErrInvalidConfig)
	}
	return &PostmarkSender{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		cfg:    cfg,
	}, nil
}

func (p *PostmarkSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.cfg.Sender,
		ReplyTo:  p.cfg.ReplyTo,
		To:       to,
		Subject:  subject,
		Tag:      "subscription",
		HTMLBody: htmlBody,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("%w: postmark error %d: %s", ErrSendFailed, resp.ErrorCode, resp.Message)
	}
	log.Infof("[Mail] Email sent to %s via postmark (message %s)", to, resp.MessageID)
	return nil
}
