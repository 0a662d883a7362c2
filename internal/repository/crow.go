package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/ratethiscrow/crowapi/internal/model"
)

// maxCreateAttempts bounds retries when concurrent uploads race for the same seq.
const maxCreateAttempts = 5

var (
	ErrCrowNotFound = errors.New("crow not found")
)

type CrowRepository interface {
	Create(ctx context.Context, crow *model.Crow) error
	ByID(ctx context.Context, crowID string) (*model.Crow, error)
	Random(ctx context.Context) (*model.Crow, error)
	All(ctx context.Context) ([]*model.Crow, error)
	AddRating(ctx context.Context, crowID string, score float64) (*model.Rating, error)
}

type crowRepository struct {
	db *sqlx.DB
}

func NewCrowRepository(db *sqlx.DB) CrowRepository {
	return &crowRepository{db: db}
}

// Create assigns the next crow_<n> id and inserts the crow. The seq unique
// constraint rejects a concurrent writer that read the same MAX(seq); that
// writer retries with a fresh number.
func (r *crowRepository) Create(ctx context.Context, crow *model.Crow) error {
	query := `
		INSERT INTO crows (crow_id, seq, img_url, avg_rating, rating_count, credit_name, credit_link, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		var next int64
		err := r.db.GetContext(ctx, &next, `SELECT COALESCE(MAX(seq), 0) + 1 FROM crows`)
		if err != nil {
			return err
		}

		crow.Seq = next
		crow.CrowID = model.CrowID(next)

		_, err = r.db.ExecContext(ctx, query,
			crow.CrowID,
			crow.Seq,
			crow.ImgURL,
			crow.AvgRating,
			crow.RatingCount,
			crow.CreditName,
			crow.CreditLink,
			crow.Name,
			crow.CreatedAt,
		)
		err = translate(err)
		if errors.Is(err, ErrDuplicate) {
			continue
		}
		return err
	}

	return fmt.Errorf("allocate crow id after %d attempts: %w", maxCreateAttempts, ErrDuplicate)
}

func (r *crowRepository) ByID(ctx context.Context, crowID string) (*model.Crow, error) {
	crow := &model.Crow{}
	query := `SELECT * FROM crows WHERE crow_id = $1`

	err := r.db.GetContext(ctx, crow, query, crowID)
	if err == sql.ErrNoRows {
		return nil, ErrCrowNotFound
	}
	if err != nil {
		return nil, err
	}

	return crow, nil
}

func (r *crowRepository) Random(ctx context.Context) (*model.Crow, error) {
	crow := &model.Crow{}
	query := `SELECT * FROM crows ORDER BY RANDOM() LIMIT 1`

	err := r.db.GetContext(ctx, crow, query)
	if err == sql.ErrNoRows {
		return nil, ErrCrowNotFound
	}
	if err != nil {
		return nil, err
	}

	return crow, nil
}

// All returns every crow in leaderboard order. Equal averages fall back to
// the larger vote count, then to upload order.
func (r *crowRepository) All(ctx context.Context) ([]*model.Crow, error) {
	crows := []*model.Crow{}
	query := `SELECT * FROM crows ORDER BY avg_rating DESC, rating_count DESC, seq ASC`

	err := r.db.SelectContext(ctx, &crows, query)
	if err != nil {
		return nil, err
	}

	return crows, nil
}

// AddRating folds one score into the running mean in a single statement, so
// concurrent raters of the same crow cannot overwrite each other.
func (r *crowRepository) AddRating(ctx context.Context, crowID string, score float64) (*model.Rating, error) {
	rating := &model.Rating{}
	query := `
		UPDATE crows
		SET avg_rating = (avg_rating * rating_count + $1) / (rating_count + 1),
		    rating_count = rating_count + 1
		WHERE crow_id = $2
		RETURNING avg_rating, rating_count
	`

	err := r.db.GetContext(ctx, rating, query, score, crowID)
	if err == sql.ErrNoRows {
		return nil, ErrCrowNotFound
	}
	if err != nil {
		return nil, err
	}

	return rating, nil
}
