package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/qmlabs-dsdi/coa-processor/internal/common"
)

type CompoundRepository interface {
	Create(ctx context.Context, q Queryer, name, description string) (*Compound, error)
	GetByID(ctx context.Context, q Queryer, id uuid.UUID) (*Compound, error)
	List(ctx context.Context, q Queryer) ([]Compound, error)
	Update(ctx context.Context, q Queryer, id uuid.UUID, name, description string) (*Compound, error)
	Delete(ctx context.Context, q Queryer, id uuid.UUID) error
}

type compoundRepo struct {
	logger *slog.Logger
}

func NewCompoundRepository(logger *slog.Logger) CompoundRepository {
	return &compoundRepo{logger: logger}
}

func (r *compoundRepo) Create(ctx context.Context, q Queryer, name, description string) (*Compound, error) {
	c := &Compound{Name: name, Description: description}
	err := q.QueryRow(ctx, `
		INSERT INTO compounds (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`,
		name, description,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create compound", "name", name, "error", err)
		return nil, err
	}
	return c, nil
}

func (r *compoundRepo) GetByID(ctx context.Context, q Queryer, id uuid.UUID) (*Compound, error) {
	c := &Compound{}
	var desc *string
	err := q.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM compounds WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &desc, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get compound", "compound_id", id, "error", err)
		return nil, err
	}
	if desc != nil {
		c.Description = *desc
	}
	return c, nil
}

func (r *compoundRepo) List(ctx context.Context, q Queryer) ([]Compound, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM compounds ORDER BY name`)
	if err != nil {
		r.logger.Error("failed to list compounds", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []Compound
	for rows.Next() {
		var c Compound
		var desc *string
		if err := rows.Scan(&c.ID, &c.Name, &desc, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if desc != nil {
			c.Description = *desc
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *compoundRepo) Update(ctx context.Context, q Queryer, id uuid.UUID, name, description string) (*Compound, error) {
	c := &Compound{ID: id, Name: name, Description: description}
	err := q.QueryRow(ctx, `
		UPDATE compounds
		SET name = $2, description = $3, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		id, name, description,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to update compound", "compound_id", id, "error", err)
		return nil, err
	}
	return c, nil
}

func (r *compoundRepo) Delete(ctx context.Context, q Queryer, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `DELETE FROM compounds WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to delete compound", "compound_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}
