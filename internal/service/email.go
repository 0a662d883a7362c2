package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/ratethiscrow/crowapi/internal/markdown"
	"github.com/resend/resend-go/v2"
)

var ErrEmailNotConfigured = errors.New("email service not configured (missing RESEND_API_KEY)")

type EmailService struct {
	client    *resend.Client
	parser    *markdown.Parser
	fromEmail string
	isDev     bool
	appURL    string
	siteURL   string
	appName   string
	keyTTL    time.Duration
}

type EmailConfig struct {
	APIKey    string
	FromEmail string
	AppURL    string // API base, hosts the verify endpoint
	SiteURL   string // frontend base, hosts the unsubscribe page
	AppName   string
	KeyTTL    time.Duration
	IsDev     bool
}

func NewEmailService(cfg EmailConfig) *EmailService {
	var client *resend.Client
	if cfg.APIKey != "" && !cfg.IsDev {
		client = resend.NewClient(cfg.APIKey)
	}

	return &EmailService{
		client:    client,
		parser:    markdown.NewParser(),
		fromEmail: cfg.FromEmail,
		isDev:     cfg.IsDev,
		appURL:    cfg.AppURL,
		siteURL:   cfg.SiteURL,
		appName:   cfg.AppName,
		keyTTL:    cfg.KeyTTL,
	}
}

func (s *EmailService) VerifyURL(key string) string {
	return fmt.Sprintf("%s/crowmail/verify?key=%s", s.appURL, url.QueryEscape(key))
}

func (s *EmailService) UnsubscribeURL(userID string) string {
	return fmt.Sprintf("%s/crowmail/unsubscribe?user_id=%s", s.siteURL, url.QueryEscape(userID))
}

func (s *EmailService) SendVerificationEmail(ctx context.Context, email, key, subType string) error {
	verifyURL := s.VerifyURL(key)
	msg, err := renderEmail(s.parser, templateVerify, verifyEmailData{
		AppName:   s.appName,
		Type:      subType,
		VerifyURL: verifyURL,
		ExpiresIn: humanDuration(s.keyTTL),
	})
	if err != nil {
		return err
	}

	if s.isDev {
		slog.Info("email sent (dev mode)", "type", "crowmail_verify", "to", email, "subject", msg.Subject, "url", verifyURL)
		return nil
	}

	return s.send(ctx, "crowmail_verify", email, msg)
}

func (s *EmailService) SendSubscribedEmail(ctx context.Context, email, userID, subType string) error {
	unsubscribeURL := s.UnsubscribeURL(userID)
	msg, err := renderEmail(s.parser, templateSubscribed, subscribedEmailData{
		AppName:        s.appName,
		Type:           subType,
		UnsubscribeURL: unsubscribeURL,
	})
	if err != nil {
		return err
	}

	if s.isDev {
		slog.Info("email sent (dev mode)", "type", "crowmail_subscribed", "to", email, "subject", msg.Subject, "url", unsubscribeURL)
		return nil
	}

	return s.send(ctx, "crowmail_subscribed", email, msg)
}

func (s *EmailService) send(ctx context.Context, kind, to string, msg *renderedEmail) error {
	if s.client == nil {
		return ErrEmailNotConfigured
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send %s email: %w", kind, err)
	}

	slog.Info("email sent", "type", kind, "to", to)
	return nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d >= time.Minute && d%time.Minute == 0:
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	default:
		return d.String()
	}
}
