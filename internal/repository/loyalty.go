package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"futsal/internal/database"
	apperrors "futsal/internal/errors"
	"futsal/internal/models"
)

const loyaltyColumns = `user_id, paid_since_reward, free_claimed, updated_at`

type LoyaltyRepository struct {
	db *database.DB
}

func NewLoyaltyRepository(db *database.DB) *LoyaltyRepository {
	return &LoyaltyRepository{db: db}
}

// Get returns the counter for a user. A missing row reads as zero.
func (r *LoyaltyRepository) Get(ctx context.Context, userID int64) (*models.LoyaltyCounter, error) {
	counter := &models.LoyaltyCounter{}
	query := `SELECT ` + loyaltyColumns + ` FROM loyalty_counters WHERE user_id = $1`

	err := sqlx.GetContext(ctx, r.db.Conn(ctx), counter, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.LoyaltyCounter{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return counter, nil
}

// LockForUpdate makes sure the row exists and locks it. Must run inside a transaction.
func (r *LoyaltyRepository) LockForUpdate(ctx context.Context, userID int64) (*models.LoyaltyCounter, error) {
	conn := r.db.Conn(ctx)

	ensure := `INSERT INTO loyalty_counters (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	if _, err := conn.ExecContext(ctx, ensure, userID); err != nil {
		return nil, fmt.Errorf("failed to ensure loyalty row: %w", err)
	}

	counter := &models.LoyaltyCounter{}
	query := `SELECT ` + loyaltyColumns + ` FROM loyalty_counters WHERE user_id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, conn, counter, query, userID); err != nil {
		return nil, err
	}
	return counter, nil
}

// IncrementPaid adds one paid booking
func (r *LoyaltyRepository) IncrementPaid(ctx context.Context, userID int64) (*models.LoyaltyCounter, error) {
	counter := &models.LoyaltyCounter{}
	query := `
		INSERT INTO loyalty_counters (user_id, paid_since_reward, free_claimed)
		VALUES ($1, 1, 0)
		ON CONFLICT (user_id) DO UPDATE
		SET paid_since_reward = loyalty_counters.paid_since_reward + 1, updated_at = NOW()
		RETURNING ` + loyaltyColumns

	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), counter, query, userID); err != nil {
		return nil, err
	}
	return counter, nil
}

// ConsumeReward resets the counter if it has reached the threshold
func (r *LoyaltyRepository) ConsumeReward(ctx context.Context, userID int64, threshold int) (*models.LoyaltyCounter, error) {
	counter := &models.LoyaltyCounter{}
	query := `
		UPDATE loyalty_counters
		SET paid_since_reward = 0, free_claimed = free_claimed + 1, updated_at = NOW()
		WHERE user_id = $1 AND paid_since_reward >= $2
		RETURNING ` + loyaltyColumns

	err := sqlx.GetContext(ctx, r.db.Conn(ctx), counter, query, userID, threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d has no reward to consume: %w", userID, apperrors.ErrInvalidState)
	}
	if err != nil {
		return nil, err
	}
	return counter, nil
}
