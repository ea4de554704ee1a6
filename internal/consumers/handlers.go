package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/stan.go"

	"futsal/internal/logger"
	"futsal/internal/metrics"
	"futsal/internal/models"
)

// MatchRecorder keeps the per-user matches played counter
type MatchRecorder interface {
	IncrementMatchesPlayed(ctx context.Context, userID int64) error
}

type Handlers struct {
	matches MatchRecorder
}

func NewHandlers(matches MatchRecorder) *Handlers {
	return &Handlers{matches: matches}
}

// processFunc handles one decoded message; a returned error leaves the message unacked for redelivery
type processFunc func(ctx context.Context, data []byte) error

// Subjects lists every subject the consumer service subscribes to
func (h *Handlers) Subjects() map[string]processFunc {
	return map[string]processFunc{
		models.EventBookingConfirmed:   h.BookingConfirmed,
		models.EventBookingCancelled:   h.BookingCancelled,
		models.EventBookingCompleted:   h.BookingCompleted,
		models.EventPaymentInitiated:   h.PaymentInitiated,
		models.EventPaymentDeclined:    h.PaymentDeclined,
		models.EventPaymentUnfulfilled: h.PaymentUnfulfilled,
		models.EventIntentExpired:      h.IntentExpired,
	}
}

// Wrap adapts a processFunc to a stan handler with manual acks
func (h *Handlers) Wrap(subject string, fn processFunc) stan.MsgHandler {
	return func(m *stan.Msg) {
		ctx := logger.ContextWithRequestID(context.Background(), fmt.Sprintf("%s-%d", subject, m.Sequence))

		if err := fn(ctx, m.Data); err != nil {
			metrics.MessagesProcessedTotal.WithLabelValues(subject, "error").Inc()
			logger.WithContext(ctx).Error("Failed to process message",
				"subject", subject,
				"sequence", m.Sequence,
				"redelivered", m.Redelivered,
				"error", err)
			return
		}

		if err := m.Ack(); err != nil {
			logger.WithContext(ctx).Error("Failed to ack message", "subject", subject, "error", err)
			return
		}
		metrics.MessagesProcessedTotal.WithLabelValues(subject, "ok").Inc()
	}
}

func decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return nil
}

func (h *Handlers) BookingConfirmed(ctx context.Context, data []byte) error {
	var event models.BookingConfirmedEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	logger.WithContext(ctx).Info("Booking confirmed",
		"user_id", event.UserID,
		"booking_ids", event.BookingIDs,
		"slot_ids", event.SlotIDs,
		"is_free", event.IsFree)
	return nil
}

func (h *Handlers) BookingCancelled(ctx context.Context, data []byte) error {
	var event models.BookingCancelledEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	logger.WithContext(ctx).Info("Booking cancelled",
		"booking_id", event.BookingID,
		"slot_id", event.SlotID,
		"cancelled_by", event.CancelledBy)
	return nil
}

// BookingCompleted counts the match for the player
func (h *Handlers) BookingCompleted(ctx context.Context, data []byte) error {
	var event models.BookingCompletedEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	if err := h.matches.IncrementMatchesPlayed(ctx, event.UserID); err != nil {
		return fmt.Errorf("failed to record match for user %d: %w", event.UserID, err)
	}

	logger.WithContext(ctx).Info("Match recorded", "booking_id", event.BookingID, "user_id", event.UserID)
	return nil
}

func (h *Handlers) PaymentInitiated(ctx context.Context, data []byte) error {
	var event models.PaymentInitiatedEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	logger.WithContext(ctx).Info("Payment initiated",
		"reference", event.Reference,
		"payment_index", event.PaymentIndex,
		"amount", event.Amount)
	return nil
}

func (h *Handlers) PaymentDeclined(ctx context.Context, data []byte) error {
	var event models.PaymentDeclinedEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	logger.WithContext(ctx).Warn("Payment declined",
		"reference", event.Reference,
		"payment_index", event.PaymentIndex,
		"status", event.Status)
	return nil
}

// PaymentUnfulfilled surfaces captured payments whose slots were lost; refunds are handled by staff
func (h *Handlers) PaymentUnfulfilled(ctx context.Context, data []byte) error {
	var event models.PaymentUnfulfilledEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	logger.WithContext(ctx).Error("Payment captured for lost slots, refund required",
		"reference", event.Reference,
		"user_id", event.UserID,
		"lost_slot_ids", event.LostSlotIDs,
		"amount", event.Amount)
	return nil
}

func (h *Handlers) IntentExpired(ctx context.Context, data []byte) error {
	var event models.IntentExpiredEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	logger.WithContext(ctx).Info("Payment intent expired",
		"reference", event.Reference,
		"user_id", event.UserID,
		"age", event.Age)
	return nil
}
