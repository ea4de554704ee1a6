package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"futsal/internal/database"
	"futsal/internal/models"
)

const slotColumns = `id, ground_id, slot_date, start_hour, end_hour, is_booked, created_at, updated_at`

type SlotRepository struct {
	db *database.DB
}

func NewSlotRepository(db *database.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

// ListAvailable returns unbooked slots of a ground on a date ordered by start hour
func (r *SlotRepository) ListAvailable(ctx context.Context, groundID int64, date time.Time) ([]models.Slot, error) {
	slots := []models.Slot{}
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE ground_id = $1 AND slot_date = $2 AND is_booked = FALSE
		ORDER BY start_hour`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &slots, query, groundID, date); err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *SlotRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.Slot, error) {
	slots := []models.Slot{}
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE id = ANY($1)
		ORDER BY id`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &slots, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	return slots, nil
}

// LockByIDs takes row locks in ascending id order. Must run inside a transaction.
func (r *SlotRepository) LockByIDs(ctx context.Context, ids []int64) ([]models.Slot, error) {
	slots := []models.Slot{}
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &slots, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	return slots, nil
}

// MarkBooked flips unbooked slots to booked and returns how many rows changed
func (r *SlotRepository) MarkBooked(ctx context.Context, ids []int64) (int64, error) {
	query := `
		UPDATE slots SET is_booked = TRUE, updated_at = NOW()
		WHERE id = ANY($1) AND is_booked = FALSE`

	res, err := r.db.Conn(ctx).ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SlotRepository) MarkFree(ctx context.Context, id int64) error {
	query := `UPDATE slots SET is_booked = FALSE, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query, id)
	return err
}

// VenueIDForSlot resolves the venue a slot belongs to
func (r *SlotRepository) VenueIDForSlot(ctx context.Context, slotID int64) (int64, error) {
	var venueID int64
	query := `
		SELECT g.venue_id
		FROM slots s
		JOIN grounds g ON g.id = s.ground_id
		WHERE s.id = $1`

	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &venueID, query, slotID); err != nil {
		return 0, err
	}
	return venueID, nil
}

// Generate inserts one-hour slots for the given start hours, skipping existing ones
func (r *SlotRepository) Generate(ctx context.Context, groundID int64, date time.Time, startHours []int64) (int64, error) {
	query := `
		INSERT INTO slots (ground_id, slot_date, start_hour, end_hour)
		SELECT $1::bigint, $2::date, h, h + 1 FROM unnest($3::bigint[]) AS h
		ON CONFLICT (ground_id, slot_date, start_hour) DO NOTHING`

	res, err := r.db.Conn(ctx).ExecContext(ctx, query, groundID, date, pq.Array(startHours))
	if err != nil {
		return 0, fmt.Errorf("failed to generate slots for ground %d: %w", groundID, err)
	}
	return res.RowsAffected()
}
