package models

import (
	"time"
)

const (
	RoleUser  = "USER"
	RoleOwner = "OWNER"
	RoleAdmin = "ADMIN"
)

const (
	BookingStatusConfirmed  = "CONFIRMED"
	BookingStatusWaitlisted = "WAITLISTED"
	BookingStatusCancelled  = "CANCELLED"
	BookingStatusCompleted  = "COMPLETED"
)

const (
	PaymentStatusPaid        = "PAID"
	PaymentStatusPending     = "PENDING"
	PaymentStatusDownPayment = "DOWN_PAYMENT"
)

// User represents an account. Profile data is owned elsewhere; the core only needs role and venue.
type User struct {
	ID            int64     `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	FullName      string    `json:"full_name" db:"full_name"`
	Role          string    `json:"role" db:"role"`
	VenueID       *int64    `json:"venue_id,omitempty" db:"venue_id"`
	MatchesPlayed int       `json:"matches_played" db:"matches_played"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	RegisteredAt  time.Time `json:"registered_at" db:"registered_at"`
}

// Venue is a futsal venue with one or more grounds
type Venue struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Location    string    `json:"location" db:"location"`
	Description string    `json:"description" db:"description"`
	Contact     string    `json:"contact" db:"contact"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Ground is a bookable pitch. Prices are in minor units.
type Ground struct {
	ID           int64  `json:"id" db:"id"`
	VenueID      int64  `json:"venue_id" db:"venue_id"`
	Name         string `json:"name" db:"name"`
	PricePerHour int64  `json:"price_per_hour" db:"price_per_hour"`
	IsAvailable  bool   `json:"is_available" db:"is_available"`
}

// Slot is one hour on one ground on one date
type Slot struct {
	ID        int64     `json:"id" db:"id"`
	GroundID  int64     `json:"ground_id" db:"ground_id"`
	Date      time.Time `json:"date" db:"slot_date"`
	StartHour int       `json:"start_hour" db:"start_hour"`
	EndHour   int       `json:"end_hour" db:"end_hour"`
	IsBooked  bool      `json:"is_booked" db:"is_booked"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Booking ties one slot to one user. Rows are never deleted; cancellation is a status.
type Booking struct {
	ID              int64     `json:"id" db:"id"`
	UserID          int64     `json:"user_id" db:"user_id"`
	TeamID          *int64    `json:"team_id,omitempty" db:"team_id"`
	SlotID          int64     `json:"slot_id" db:"slot_id"`
	IntentReference *string   `json:"intent_reference,omitempty" db:"intent_reference"`
	Status          string    `json:"status" db:"status"`
	PaymentStatus   string    `json:"payment_status" db:"payment_status"`
	AmountPaid      int64     `json:"amount_paid" db:"amount_paid"`
	IsFree          bool      `json:"is_free" db:"is_free"`
	Notes           string    `json:"notes" db:"notes"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// IsLive reports whether the booking still holds its slot
func (b *Booking) IsLive() bool {
	return b.Status == BookingStatusConfirmed || b.Status == BookingStatusCompleted
}

// LoyaltyCounter tracks paid bookings since the last reward
type LoyaltyCounter struct {
	UserID          int64     `json:"user_id" db:"user_id"`
	PaidSinceReward int       `json:"paid_since_reward" db:"paid_since_reward"`
	FreeClaimed     int       `json:"free_claimed" db:"free_claimed"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// PaymentIntent records a paid reservation awaiting gateway confirmation.
// It exists only between initiation and finalization.
type PaymentIntent struct {
	Reference    string     `json:"reference"`
	UserID       int64      `json:"user_id"`
	GroundID     int64      `json:"ground_id"`
	SlotIDs      []int64    `json:"slot_ids"`
	TeamID       *int64     `json:"team_id,omitempty"`
	Amount       int64      `json:"amount"`
	PaymentIndex *string    `json:"payment_index,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CheckedAt    *time.Time `json:"checked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
