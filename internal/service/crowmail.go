package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ratethiscrow/crowapi/internal/model"
	"github.com/ratethiscrow/crowapi/internal/repository"
	"github.com/ratethiscrow/crowapi/internal/validation"
)

var (
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidType       = errors.New("invalid subscription type")
	ErrAlreadySubscribed = errors.New("already subscribed")
	ErrAlreadyPending    = errors.New("already registered")
	ErrInvalidKey        = errors.New("invalid or expired key")
	ErrMailDelivery      = errors.New("failed to send email")
)

// Mailer delivers crowmail messages.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, key, subType string) error
	SendSubscribedEmail(ctx context.Context, email, userID, subType string) error
}

type CrowmailService struct {
	keys   repository.VerificationKeyRepository
	subs   repository.SubscriberRepository
	mailer Mailer
	keyTTL time.Duration
	now    func() time.Time
}

func NewCrowmailService(keys repository.VerificationKeyRepository, subs repository.SubscriberRepository, mailer Mailer, keyTTL time.Duration) *CrowmailService {
	return &CrowmailService{
		keys:   keys,
		subs:   subs,
		mailer: mailer,
		keyTTL: keyTTL,
		now:    time.Now,
	}
}

// Subscribe records a pending key for email and mails the confirmation link.
// One address holds at most one live key; a lapsed key is replaced.
func (s *CrowmailService) Subscribe(ctx context.Context, email, subType string) error {
	email = validation.NormalizeEmail(email)
	err := validation.ValidateEmail(email)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}

	subType = validation.NormalizeSubscriptionType(subType)
	if !validation.IsValidSubscriptionType(subType) {
		return ErrInvalidType
	}

	_, err = s.subs.ByEmail(ctx, email)
	if err == nil {
		return ErrAlreadySubscribed
	}
	if !errors.Is(err, repository.ErrSubscriberNotFound) {
		return fmt.Errorf("failed to check subscriber: %w", err)
	}

	now := s.now().UTC()

	err = s.keys.DeleteExpiredForEmail(ctx, email, now)
	if err != nil {
		return fmt.Errorf("failed to clear expired keys: %w", err)
	}

	_, err = s.keys.PendingByEmail(ctx, email, now)
	if err == nil {
		return ErrAlreadyPending
	}
	if !errors.Is(err, repository.ErrKeyNotFound) {
		return fmt.Errorf("failed to check pending key: %w", err)
	}

	// The unique email constraint still rejects a concurrent subscribe that
	// passed the check above.
	key := &model.VerificationKey{
		Token:     uuid.NewString(),
		Email:     email,
		Type:      subType,
		ExpiresAt: now.Add(s.keyTTL),
		CreatedAt: now,
	}

	err = s.keys.Create(ctx, key)
	if errors.Is(err, repository.ErrKeyPending) {
		return ErrAlreadyPending
	}
	if err != nil {
		return fmt.Errorf("failed to create verification key: %w", err)
	}

	err = s.mailer.SendVerificationEmail(ctx, email, key.Token, subType)
	if err != nil {
		// Drop the key so the address is not stuck pending without a link.
		delErr := s.keys.Delete(context.WithoutCancel(ctx), key.Token)
		if delErr != nil {
			slog.Error("failed to delete verification key after send failure", "error", delErr, "email", email)
		}
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	slog.Info("crowmail subscription pending", "email", email, "type", subType)
	return nil
}

// Verify consumes key and returns the confirmed subscriber. A second call
// with the same key fails with ErrInvalidKey.
func (s *CrowmailService) Verify(ctx context.Context, key string) (*model.Subscriber, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidKey
	}

	sub, created, err := s.subs.PromoteKey(ctx, key, uuid.NewString(), s.now().UTC())
	if errors.Is(err, repository.ErrKeyNotFound) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify key: %w", err)
	}

	if !created {
		slog.Info("crowmail key verified for existing subscriber", "user_id", sub.UserID)
		return sub, nil
	}

	slog.Info("crowmail subscription confirmed", "user_id", sub.UserID, "type", sub.Type)

	err = s.mailer.SendSubscribedEmail(ctx, sub.Email, sub.UserID, sub.Type)
	if err != nil {
		slog.Warn("failed to send subscribed email", "error", err, "user_id", sub.UserID)
	}

	return sub, nil
}

func (s *CrowmailService) Unsubscribe(ctx context.Context, userID string) error {
	err := s.subs.Delete(ctx, strings.TrimSpace(userID))
	if err != nil {
		return err
	}

	slog.Info("crowmail unsubscribed", "user_id", userID)
	return nil
}

// SweepExpired deletes keys that expired more than olderThan ago.
func (s *CrowmailService) SweepExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-olderThan)

	removed, err := s.keys.CleanupExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired keys: %w", err)
	}

	slog.Info("expired verification keys swept", "removed", removed, "cutoff", cutoff)
	return removed, nil
}
