package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"futsal/internal/database"
	"futsal/internal/models"
)

const intentColumns = `reference, user_id, ground_id, slot_ids, team_id, amount, payment_index, expires_at, checked_at, created_at`

type intentRow struct {
	Reference    string        `db:"reference"`
	UserID       int64         `db:"user_id"`
	GroundID     int64         `db:"ground_id"`
	SlotIDs      pq.Int64Array `db:"slot_ids"`
	TeamID       *int64        `db:"team_id"`
	Amount       int64         `db:"amount"`
	PaymentIndex *string       `db:"payment_index"`
	ExpiresAt    *time.Time    `db:"expires_at"`
	CheckedAt    *time.Time    `db:"checked_at"`
	CreatedAt    time.Time     `db:"created_at"`
}

func (row intentRow) toModel() *models.PaymentIntent {
	return &models.PaymentIntent{
		Reference:    row.Reference,
		UserID:       row.UserID,
		GroundID:     row.GroundID,
		SlotIDs:      []int64(row.SlotIDs),
		TeamID:       row.TeamID,
		Amount:       row.Amount,
		PaymentIndex: row.PaymentIndex,
		ExpiresAt:    row.ExpiresAt,
		CheckedAt:    row.CheckedAt,
		CreatedAt:    row.CreatedAt,
	}
}

type IntentRepository struct {
	db *database.DB
}

func NewIntentRepository(db *database.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

func (r *IntentRepository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (reference, user_id, ground_id, slot_ids, team_id, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	return r.db.Conn(ctx).QueryRowxContext(ctx, query,
		intent.Reference,
		intent.UserID,
		intent.GroundID,
		pq.Array(intent.SlotIDs),
		intent.TeamID,
		intent.Amount,
	).Scan(&intent.CreatedAt)
}

func (r *IntentRepository) GetByReference(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	return r.get(ctx, `SELECT `+intentColumns+` FROM payment_intents WHERE reference = $1`, reference)
}

// GetByReferenceForUpdate locks the intent so concurrent callbacks serialize on it
func (r *IntentRepository) GetByReferenceForUpdate(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	return r.get(ctx, `SELECT `+intentColumns+` FROM payment_intents WHERE reference = $1 FOR UPDATE`, reference)
}

func (r *IntentRepository) get(ctx context.Context, query string, args ...any) (*models.PaymentIntent, error) {
	var row intentRow
	err := sqlx.GetContext(ctx, r.db.Conn(ctx), &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// SetPaymentIndex stores the gateway session id and the time its payment link stops working.
// It reports whether the intent still exists.
func (r *IntentRepository) SetPaymentIndex(ctx context.Context, reference, paymentIndex string, expiresAt time.Time) (bool, error) {
	query := `UPDATE payment_intents SET payment_index = $1, expires_at = $2 WHERE reference = $3`
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, paymentIndex, expiresAt, reference)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkChecked records that the sweep looked at the intent without settling it
func (r *IntentRepository) MarkChecked(ctx context.Context, reference string) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `UPDATE payment_intents SET checked_at = NOW() WHERE reference = $1`, reference)
	return err
}

// Delete removes the intent and reports whether it existed
func (r *IntentRepository) Delete(ctx context.Context, reference string) (bool, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM payment_intents WHERE reference = $1`, reference)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListCreatedBefore returns intents created before the cutoff.
// Intents never checked by the sweep come first, then the least recently checked.
func (r *IntentRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error) {
	var rows []intentRow
	query := `
		SELECT ` + intentColumns + `
		FROM payment_intents
		WHERE created_at < $1
		ORDER BY COALESCE(checked_at, created_at)
		LIMIT $2`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &rows, query, cutoff, limit); err != nil {
		return nil, err
	}

	intents := make([]models.PaymentIntent, 0, len(rows))
	for _, row := range rows {
		intents = append(intents, *row.toModel())
	}
	return intents, nil
}
