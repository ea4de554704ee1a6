package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "futsal/internal/errors"
	"futsal/internal/middleware"
	"futsal/internal/models"
	"futsal/internal/validation"
)

type stubReservations struct {
	reserveResult *models.ReserveResult
	freeBooking   *models.Booking
	redirect      *models.PaymentRedirect
	finalize      *models.FinalizeResult
	booking       *models.Booking
	slots         []models.Slot
	err           error

	lastRequest   models.ReserveRequest
	lastReference string
	lastPidx      string
	lastActor     models.Actor
	lastDate      time.Time
}

func (s *stubReservations) Reserve(_ context.Context, req models.ReserveRequest) (*models.ReserveResult, error) {
	s.lastRequest = req
	return s.reserveResult, s.err
}

func (s *stubReservations) InitiateFreeBooking(_ context.Context, req models.ReserveRequest) (*models.Booking, error) {
	s.lastRequest = req
	return s.freeBooking, s.err
}

func (s *stubReservations) InitiatePaidBooking(_ context.Context, req models.ReserveRequest) (*models.PaymentRedirect, error) {
	s.lastRequest = req
	return s.redirect, s.err
}

func (s *stubReservations) HandleGatewayCallback(_ context.Context, reference, pidx string) (*models.FinalizeResult, error) {
	s.lastReference = reference
	s.lastPidx = pidx
	return s.finalize, s.err
}

func (s *stubReservations) CancelBooking(_ context.Context, _ int64, actor models.Actor) (*models.Booking, error) {
	s.lastActor = actor
	return s.booking, s.err
}

func (s *stubReservations) CompleteBooking(_ context.Context, _ int64, actor models.Actor) (*models.Booking, error) {
	s.lastActor = actor
	return s.booking, s.err
}

func (s *stubReservations) ListAvailable(_ context.Context, _ int64, date time.Time) ([]models.Slot, error) {
	s.lastDate = date
	return s.slots, s.err
}

type stubBookings struct{ bookings []models.Booking }

func (s stubBookings) ListByUser(context.Context, int64) ([]models.Booking, error) {
	return s.bookings, nil
}

type stubLoyalty struct{}

func (stubLoyalty) Status(_ context.Context, userID int64) (*models.LoyaltyStatus, error) {
	return &models.LoyaltyStatus{UserID: userID, PaidSinceReward: 3, Threshold: 7, BookingsUntilReward: 4}, nil
}

type stubVenues struct{}

func (stubVenues) Search(context.Context, string, int) ([]models.Venue, error) {
	return []models.Venue{{ID: 1, Name: "Arena", Location: "Baneshwor"}}, nil
}

func (stubVenues) AvailableSlots(_ context.Context, venueID int64, date time.Time) (*models.VenueSlotsResponse, error) {
	if venueID != 1 {
		return nil, fmt.Errorf("venue %d: %w", venueID, apperrors.ErrNotFound)
	}
	return &models.VenueSlotsResponse{VenueID: venueID, Date: date.Format(models.DateLayout)}, nil
}

var testActor = models.Actor{UserID: 42, Role: models.RoleUser}

func setupRouter(t *testing.T, res *stubReservations, authenticated bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.RegisterBindings())

	h := NewHandlers(res, stubBookings{bookings: []models.Booking{{ID: 5, SlotID: 9, Status: models.BookingStatusConfirmed}}}, stubLoyalty{}, stubVenues{})

	r := gin.New()
	r.GET("/api/payments/callback", h.PaymentCallback)

	api := r.Group("/api")
	if authenticated {
		api.Use(func(c *gin.Context) {
			c.Set(middleware.ActorKey, testActor)
			c.Next()
		})
	}
	{
		api.GET("/grounds/:id/slots", h.ListGroundSlots)
		api.GET("/venues", h.SearchVenues)
		api.GET("/venues/:id/slots", h.ListVenueSlots)
		api.GET("/loyalty", h.GetLoyalty)

		bookings := api.Group("/bookings")
		bookings.GET("", h.ListBookings)
		bookings.POST("", h.CreateBooking)
		bookings.POST("/free", h.CreateFreeBooking)
		bookings.POST("/initiatePayment", h.InitiatePayment)
		bookings.PATCH("/:id/cancel", h.CancelBooking)
		bookings.PATCH("/:id/complete", h.CompleteBooking)
	}
	return r
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateBookingPaidPath(t *testing.T) {
	res := &stubReservations{reserveResult: &models.ReserveResult{
		State:   models.StatePendingGateway,
		Payment: &models.PaymentRedirect{RedirectURL: "https://pay.example.com/?pidx=p1", Reference: "ref-1"},
	}}
	r := setupRouter(t, res, true)

	w := doRequest(r, http.MethodPost, "/api/bookings", models.ReserveBookingRequest{GroundID: 1, SlotIDs: []int64{2, 3}, Amount: 2000})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://pay.example.com/?pidx=p1", w.Header().Get("Location"))
	assert.Equal(t, testActor.UserID, res.lastRequest.UserID)
	assert.Equal(t, []int64{2, 3}, res.lastRequest.SlotIDs)

	var result models.ReserveResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.StatePendingGateway, result.State)
	assert.Equal(t, "ref-1", result.Payment.Reference)
}

func TestCreateFreeBooking(t *testing.T) {
	res := &stubReservations{freeBooking: &models.Booking{ID: 7, SlotID: 4, IsFree: true}}
	r := setupRouter(t, res, true)

	w := doRequest(r, http.MethodPost, "/api/bookings/free", models.FreeBookingRequest{GroundID: 1, SlotID: 4})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []int64{4}, res.lastRequest.SlotIDs)

	var booking models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &booking))
	assert.True(t, booking.IsFree)
}

func TestCreateBookingRejectsBadBody(t *testing.T) {
	r := setupRouter(t, &stubReservations{}, true)

	w := doRequest(r, http.MethodPost, "/api/bookings/initiatePayment", map[string]interface{}{"ground_id": 1, "slot_ids": []int64{}, "amount": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/api/bookings/initiatePayment", map[string]interface{}{"ground_id": 1, "slot_ids": []int64{1}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "amount is required for payment")
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("slots [1]: %w", apperrors.ErrSlotUnavailable), http.StatusConflict},
		{fmt.Errorf("amount: %w", apperrors.ErrInvalidRequest), http.StatusBadRequest},
		{apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{apperrors.ErrForbidden, http.StatusForbidden},
		{apperrors.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("lookup: %w", apperrors.ErrGatewayUnavailable), http.StatusServiceUnavailable},
		{apperrors.ErrDeclined, http.StatusPaymentRequired},
		{fmt.Errorf("booked 1 of 2: %w", apperrors.ErrInvalidState), http.StatusInternalServerError},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			r := setupRouter(t, &stubReservations{err: tt.err}, true)
			w := doRequest(r, http.MethodPost, "/api/bookings/initiatePayment", models.InitiatePaymentRequest{GroundID: 1, SlotIDs: []int64{1}, Amount: 1000})
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	r := setupRouter(t, &stubReservations{err: fmt.Errorf("pq: relation slots is locked: %w", apperrors.ErrInvalidState)}, true)

	w := doRequest(r, http.MethodPatch, "/api/bookings/3/cancel", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestRequiresActor(t *testing.T) {
	r := setupRouter(t, &stubReservations{}, false)

	for _, path := range []string{"/api/bookings", "/api/loyalty"} {
		w := doRequest(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestCancelAndCompletePassActor(t *testing.T) {
	res := &stubReservations{booking: &models.Booking{ID: 3, Status: models.BookingStatusCancelled}}
	r := setupRouter(t, res, true)

	w := doRequest(r, http.MethodPatch, "/api/bookings/3/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testActor, res.lastActor)

	w = doRequest(r, http.MethodPatch, "/api/bookings/3/complete", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPatch, "/api/bookings/abc/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListGroundSlots(t *testing.T) {
	date := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	res := &stubReservations{slots: []models.Slot{{ID: 1, GroundID: 2, Date: date, StartHour: 6, EndHour: 7}}}
	r := setupRouter(t, res, true)

	w := doRequest(r, http.MethodGet, "/api/grounds/2/slots?date=2026-10-20", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, res.lastDate.Equal(date))

	var slots models.ListSlotsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &slots))
	require.Len(t, slots, 1)
	assert.Equal(t, "2026-10-20", slots[0].Date)

	for _, path := range []string{"/api/grounds/2/slots", "/api/grounds/2/slots?date=20-10-2026", "/api/grounds/x/slots?date=2026-10-20"} {
		w := doRequest(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestVenueEndpoints(t *testing.T) {
	r := setupRouter(t, &stubReservations{}, true)

	w := doRequest(r, http.MethodGet, "/api/venues?query=arena", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var venues models.ListVenuesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &venues))
	assert.Equal(t, "Arena", venues[0].Name)

	w = doRequest(r, http.MethodGet, "/api/venues?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/venues/1/slots?date=2026-10-20", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/api/venues/9/slots?date=2026-10-20", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListBookingsAndLoyalty(t *testing.T) {
	r := setupRouter(t, &stubReservations{}, true)

	w := doRequest(r, http.MethodGet, "/api/bookings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bookings models.ListBookingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bookings))
	require.Len(t, bookings, 1)
	assert.Equal(t, int64(9), bookings[0].SlotID)

	w = doRequest(r, http.MethodGet, "/api/loyalty", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status models.LoyaltyStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, testActor.UserID, status.UserID)
	assert.Equal(t, 4, status.BookingsUntilReward)
}

func TestPaymentCallback(t *testing.T) {
	res := &stubReservations{finalize: &models.FinalizeResult{State: models.StateFinalized, Reference: "ref-1", AlreadyProcessed: true}}
	r := setupRouter(t, res, false)

	w := doRequest(r, http.MethodGet, "/api/payments/callback?pidx=p1&purchase_order_id=ref-1&status=Completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ref-1", res.lastReference)
	assert.Equal(t, "p1", res.lastPidx)

	var result models.FinalizeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.AlreadyProcessed)

	w = doRequest(r, http.MethodGet, "/api/payments/callback?pidx=p1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentCallbackDeclined(t *testing.T) {
	res := &stubReservations{err: fmt.Errorf("payment User canceled: %w", apperrors.ErrDeclined)}
	r := setupRouter(t, res, false)

	w := doRequest(r, http.MethodGet, "/api/payments/callback?pidx=p1&purchase_order_id=ref-1", nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), string(models.StateDeclined))
}
