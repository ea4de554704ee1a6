package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"futsal/internal/database"
	"futsal/internal/models"
)

const userColumns = `id, email, password_hash, full_name, role, venue_id, matches_played, is_active, registered_at`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) get(ctx context.Context, query string, args ...any) (*models.User, error) {
	user := &models.User{}
	err := sqlx.GetContext(ctx, r.db.Conn(ctx), user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, full_name, role, venue_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, registered_at`

	return r.db.Conn(ctx).QueryRowxContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.Role,
		user.VenueID,
		user.IsActive,
	).Scan(&user.ID, &user.RegisteredAt)
}

// IncrementMatchesPlayed is applied when a booking is completed
func (r *UserRepository) IncrementMatchesPlayed(ctx context.Context, userID int64) error {
	query := `UPDATE users SET matches_played = matches_played + 1 WHERE id = $1`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query, userID)
	return err
}
