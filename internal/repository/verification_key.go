package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ratethiscrow/crowapi/internal/model"
)

var (
	ErrKeyNotFound = errors.New("verification key not found")
	ErrKeyPending  = errors.New("verification key already pending for email")
)

type VerificationKeyRepository interface {
	Create(ctx context.Context, key *model.VerificationKey) error
	PendingByEmail(ctx context.Context, email string, now time.Time) (*model.VerificationKey, error)
	Delete(ctx context.Context, token string) error
	DeleteExpiredForEmail(ctx context.Context, email string, now time.Time) error
	CleanupExpired(ctx context.Context, before time.Time) (int64, error)
}

type verificationKeyRepository struct {
	db *sqlx.DB
}

func NewVerificationKeyRepository(db *sqlx.DB) VerificationKeyRepository {
	return &verificationKeyRepository{db: db}
}

// Create stores a pending key. The unique email column makes this the guard
// against a second pending key for the same address.
func (r *verificationKeyRepository) Create(ctx context.Context, key *model.VerificationKey) error {
	query := `
		INSERT INTO verification_keys (token, email, type, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		key.Token,
		key.Email,
		key.Type,
		key.ExpiresAt,
		key.CreatedAt,
	)
	err = translate(err)
	if errors.Is(err, ErrDuplicate) {
		return ErrKeyPending
	}
	return err
}

func (r *verificationKeyRepository) PendingByEmail(ctx context.Context, email string, now time.Time) (*model.VerificationKey, error) {
	key := &model.VerificationKey{}
	query := `SELECT * FROM verification_keys WHERE email = $1 AND expires_at > $2`

	err := r.db.GetContext(ctx, key, query, email, now)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}

	return key, nil
}

func (r *verificationKeyRepository) Delete(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM verification_keys WHERE token = $1`, token)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrKeyNotFound
	}

	return nil
}

// DeleteExpiredForEmail clears a lapsed key so the address can subscribe again.
func (r *verificationKeyRepository) DeleteExpiredForEmail(ctx context.Context, email string, now time.Time) error {
	query := `DELETE FROM verification_keys WHERE email = $1 AND expires_at <= $2`
	_, err := r.db.ExecContext(ctx, query, email, now)
	return err
}

// CleanupExpired removes keys that expired before the cutoff.
//
// Expired keys are inert: verification rejects them by timestamp. Nothing
// calls this automatically; run it from crowctl when the table needs pruning.
func (r *verificationKeyRepository) CleanupExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM verification_keys WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
