package models

import "time"

// NATS subjects
const (
	EventBookingConfirmed   = "booking.confirmed"
	EventBookingCancelled   = "booking.cancelled"
	EventBookingCompleted   = "booking.completed"
	EventPaymentInitiated   = "payment.initiated"
	EventPaymentDeclined    = "payment.declined"
	EventPaymentUnfulfilled = "payment.unfulfilled"
	EventIntentExpired      = "intent.expired"
)

// BookingConfirmedEvent is published once per committed reservation
type BookingConfirmedEvent struct {
	BookingIDs []int64   `json:"booking_ids"`
	UserID     int64     `json:"user_id"`
	SlotIDs    []int64   `json:"slot_ids"`
	IsFree     bool      `json:"is_free"`
	Reference  string    `json:"reference,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type BookingCancelledEvent struct {
	BookingID   int64     `json:"booking_id"`
	SlotID      int64     `json:"slot_id"`
	CancelledBy int64     `json:"cancelled_by"`
	Timestamp   time.Time `json:"timestamp"`
}

// BookingCompletedEvent drives the matches-played counter
type BookingCompletedEvent struct {
	BookingID int64     `json:"booking_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type PaymentInitiatedEvent struct {
	Reference    string    `json:"reference"`
	UserID       int64     `json:"user_id"`
	Amount       int64     `json:"amount"`
	PaymentIndex string    `json:"payment_index"`
	Timestamp    time.Time `json:"timestamp"`
}

type PaymentDeclinedEvent struct {
	Reference    string    `json:"reference"`
	PaymentIndex string    `json:"payment_index"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

// PaymentUnfulfilledEvent: the payment was captured but some slots were lost and need a manual refund
type PaymentUnfulfilledEvent struct {
	Reference   string    `json:"reference"`
	UserID      int64     `json:"user_id"`
	LostSlotIDs []int64   `json:"lost_slot_ids"`
	Amount      int64     `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
}

type IntentExpiredEvent struct {
	Reference string    `json:"reference"`
	UserID    int64     `json:"user_id"`
	Age       string    `json:"age"`
	Timestamp time.Time `json:"timestamp"`
}
