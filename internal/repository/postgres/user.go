package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User, event *model.OutboxEvent) error {
	query := `
		INSERT INTO users (id, name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	user.Stamp(time.Now())

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			user.ID,
			user.Name,
			user.Email,
			user.Phone,
			user.CreatedAt,
			user.UpdatedAt,
		); err != nil {
			return mapError(err, "failed to create user")
		}
		return insertOutboxEvent(ctx, tx, event)
	})
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, name, email, phone, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, mapError(err, "failed to get user")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, name, email, phone, created_at, updated_at
		FROM users
		WHERE lower(email) = lower($1)
	`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, mapError(err, "failed to get user by email")
	}
	return &user, nil
}
