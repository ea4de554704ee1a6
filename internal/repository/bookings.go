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

const bookingColumns = `id, user_id, team_id, slot_id, intent_reference, status, payment_status,
	amount_paid, is_free, notes, created_at, updated_at`

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create writes a booking only if its slot is currently booked. The slot must have been claimed first.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (user_id, team_id, slot_id, intent_reference, status, payment_status, amount_paid, is_free, notes)
		SELECT $1::bigint, $2::bigint, s.id, $4::varchar, $5::varchar, $6::varchar, $7::bigint, $8::boolean, $9::text
		FROM slots s
		WHERE s.id = $3 AND s.is_booked = TRUE
		RETURNING id, created_at, updated_at`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		booking.UserID,
		booking.TeamID,
		booking.SlotID,
		booking.IntentReference,
		booking.Status,
		booking.PaymentStatus,
		booking.AmountPaid,
		booking.IsFree,
		booking.Notes,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("slot %d is not claimed: %w", booking.SlotID, apperrors.ErrInvalidState)
	}
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("slot %d already backs a live booking: %w", booking.SlotID, apperrors.ErrInvalidState)
	}
	return err
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetByIDForUpdate locks the booking row for the rest of the transaction
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *BookingRepository) get(ctx context.Context, query string, args ...any) (*models.Booking, error) {
	booking := &models.Booking{}
	err := sqlx.GetContext(ctx, r.db.Conn(ctx), booking, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID int64) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &bookings, query, userID); err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListByIntent returns bookings already written for an intent reference
func (r *BookingRepository) ListByIntent(ctx context.Context, reference string) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE intent_reference = $1 ORDER BY slot_id`

	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &bookings, query, reference); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query, status, id)
	return err
}
