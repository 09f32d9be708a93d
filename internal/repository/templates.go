package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/qmlabs-dsdi/coa-processor/internal/common"
)

type TemplateRepository interface {
	Create(ctx context.Context, q Queryer, name, description string) (*Template, error)
	GetByID(ctx context.Context, q Queryer, id uuid.UUID) (*Template, error)
	List(ctx context.Context, q Queryer) ([]Template, error)
	Update(ctx context.Context, q Queryer, id uuid.UUID, name, description string) (*Template, error)
	Delete(ctx context.Context, q Queryer, id uuid.UUID) error
}

type templateRepo struct {
	logger *slog.Logger
}

func NewTemplateRepository(logger *slog.Logger) TemplateRepository {
	return &templateRepo{logger: logger}
}

func (r *templateRepo) Create(ctx context.Context, q Queryer, name, description string) (*Template, error) {
	t := &Template{Name: name, Description: description}
	err := q.QueryRow(ctx, `
		INSERT INTO templates (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`,
		name, description,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create template", "name", name, "error", err)
		return nil, err
	}
	return t, nil
}

func (r *templateRepo) GetByID(ctx context.Context, q Queryer, id uuid.UUID) (*Template, error) {
	t := &Template{}
	var desc *string
	err := q.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM templates WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &desc, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get template", "template_id", id, "error", err)
		return nil, err
	}
	if desc != nil {
		t.Description = *desc
	}
	return t, nil
}

func (r *templateRepo) List(ctx context.Context, q Queryer) ([]Template, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM templates ORDER BY name`)
	if err != nil {
		r.logger.Error("failed to list templates", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var t Template
		var desc *string
		if err := rows.Scan(&t.ID, &t.Name, &desc, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if desc != nil {
			t.Description = *desc
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *templateRepo) Update(ctx context.Context, q Queryer, id uuid.UUID, name, description string) (*Template, error) {
	t := &Template{ID: id, Name: name, Description: description}
	err := q.QueryRow(ctx, `
		UPDATE templates
		SET name = $2, description = $3, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		id, name, description,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to update template", "template_id", id, "error", err)
		return nil, err
	}
	return t, nil
}

func (r *templateRepo) Delete(ctx context.Context, q Queryer, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to delete template", "template_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}
