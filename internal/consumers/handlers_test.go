package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futsal/internal/models"
)

type recordingMatches struct {
	users []int64
	err   error
}

func (r *recordingMatches) IncrementMatchesPlayed(_ context.Context, userID int64) error {
	if r.err != nil {
		return r.err
	}
	r.users = append(r.users, userID)
	return nil
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestBookingCompletedRecordsMatch(t *testing.T) {
	matches := &recordingMatches{}
	h := NewHandlers(matches)

	err := h.BookingCompleted(context.Background(), mustJSON(t, models.BookingCompletedEvent{BookingID: 3, UserID: 9, Timestamp: time.Now()}))
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, matches.users)
}

func TestBookingCompletedFailureIsRetried(t *testing.T) {
	h := NewHandlers(&recordingMatches{err: errors.New("connection refused")})

	err := h.BookingCompleted(context.Background(), mustJSON(t, models.BookingCompletedEvent{BookingID: 3, UserID: 9}))
	assert.Error(t, err, "an error leaves the message unacked")
}

func TestHandlersRejectMalformedPayloads(t *testing.T) {
	h := NewHandlers(&recordingMatches{})

	for subject, fn := range h.Subjects() {
		assert.Error(t, fn(context.Background(), []byte("{not json")), subject)
	}
}

func TestSubjectsCoverPublishedEvents(t *testing.T) {
	h := NewHandlers(&recordingMatches{})
	subjects := h.Subjects()

	for _, subject := range []string{
		models.EventBookingConfirmed,
		models.EventBookingCancelled,
		models.EventBookingCompleted,
		models.EventPaymentInitiated,
		models.EventPaymentDeclined,
		models.EventPaymentUnfulfilled,
		models.EventIntentExpired,
	} {
		assert.Contains(t, subjects, subject)
	}

	err := subjects[models.EventPaymentUnfulfilled](context.Background(), mustJSON(t, models.PaymentUnfulfilledEvent{Reference: "r", LostSlotIDs: []int64{1}}))
	assert.NoError(t, err)
}
