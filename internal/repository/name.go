package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/ratethiscrow/crowapi/internal/model"
)

var (
	ErrNameNotFound = errors.New("name not found for this crow")
)

type NameRepository interface {
	Create(ctx context.Context, name *model.Name) error
	ByCrow(ctx context.Context, crowID string) ([]*model.Name, error)
	Vote(ctx context.Context, crowID, nameID string, up bool) error
}

type nameRepository struct {
	db *sqlx.DB
}

func NewNameRepository(db *sqlx.DB) NameRepository {
	return &nameRepository{db: db}
}

func (r *nameRepository) Create(ctx context.Context, name *model.Name) error {
	query := `
		INSERT INTO names (name_id, crow_id, name, upvotes, downvotes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		name.NameID,
		name.CrowID,
		name.Name,
		name.Upvotes,
		name.Downvotes,
		name.CreatedAt,
	)
	err = translate(err)
	if errors.Is(err, ErrForeignKey) {
		return ErrCrowNotFound
	}
	return err
}

func (r *nameRepository) ByCrow(ctx context.Context, crowID string) ([]*model.Name, error) {
	names := []*model.Name{}
	query := `SELECT * FROM names WHERE crow_id = $1 ORDER BY upvotes DESC, created_at ASC, name_id ASC`

	err := r.db.SelectContext(ctx, &names, query, crowID)
	if err != nil {
		return nil, err
	}

	return names, nil
}

func (r *nameRepository) Vote(ctx context.Context, crowID, nameID string, up bool) error {
	column := "downvotes"
	if up {
		column = "upvotes"
	}

	query := `UPDATE names SET ` + column + ` = ` + column + ` + 1 WHERE crow_id = $1 AND name_id = $2`

	result, err := r.db.ExecContext(ctx, query, crowID, nameID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNameNotFound
	}

	return nil
}
