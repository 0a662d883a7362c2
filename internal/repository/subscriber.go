package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ratethiscrow/crowapi/internal/model"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
)

type SubscriberRepository interface {
	ByEmail(ctx context.Context, email string) (*model.Subscriber, error)
	PromoteKey(ctx context.Context, token, userID string, now time.Time) (*model.Subscriber, bool, error)
	Delete(ctx context.Context, userID string) error
}

type subscriberRepository struct {
	db *sqlx.DB
}

func NewSubscriberRepository(db *sqlx.DB) SubscriberRepository {
	return &subscriberRepository{db: db}
}

func (r *subscriberRepository) ByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	sub := &model.Subscriber{}
	query := `SELECT * FROM subscribers WHERE email = $1`

	err := r.db.GetContext(ctx, sub, query, email)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriberNotFound
	}
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// PromoteKey consumes an unexpired key and records its subscriber in one
// transaction. The key row is deleted first, so only one caller can ever
// promote a given token; ErrKeyNotFound covers unknown, used and expired keys.
//
// If the email is already subscribed the existing row is returned and created
// is false. The key is consumed either way.
func (r *subscriberRepository) PromoteKey(ctx context.Context, token, userID string, now time.Time) (*model.Subscriber, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin promote: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var key model.VerificationKey
	err = tx.GetContext(ctx, &key, `
		DELETE FROM verification_keys
		WHERE token = $1 AND expires_at > $2
		RETURNING token, email, type, expires_at, created_at
	`, token, now)
	if err == sql.ErrNoRows {
		return nil, false, ErrKeyNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("consume key: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO subscribers (user_id, email, type, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
	`, userID, key.Email, key.Type, now)
	if err != nil {
		return nil, false, fmt.Errorf("insert subscriber: %w", translate(err))
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	sub := &model.Subscriber{}
	err = tx.GetContext(ctx, sub, `SELECT * FROM subscribers WHERE email = $1`, key.Email)
	if err != nil {
		return nil, false, fmt.Errorf("load subscriber: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, false, fmt.Errorf("commit promote: %w", err)
	}

	return sub, inserted == 1, nil
}

func (r *subscriberRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM subscribers WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrSubscriberNotFound
	}

	return nil
}
