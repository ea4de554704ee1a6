package handlers

import (
	"net/http"

	"futsal/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateBooking - POST /api/bookings
// Забронировать слоты: бесплатно при наличии награды за лояльность, иначе через оплату
func (h *Handlers) CreateBooking(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req models.ReserveBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.reservations.Reserve(c.Request.Context(), models.ReserveRequest{
		UserID:   actor.UserID,
		GroundID: req.GroundID,
		SlotIDs:  req.SlotIDs,
		TeamID:   req.TeamID,
		Amount:   req.Amount,
	})
	if err != nil {
		handleServiceError(c, err, "create booking")
		return
	}

	if result.Payment != nil {
		c.Header("Location", result.Payment.RedirectURL)
	}
	c.JSON(http.StatusCreated, result)
}

// CreateFreeBooking - POST /api/bookings/free
// Забронировать один слот за награду программы лояльности
func (h *Handlers) CreateFreeBooking(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req models.FreeBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.reservations.InitiateFreeBooking(c.Request.Context(), models.ReserveRequest{
		UserID:   actor.UserID,
		GroundID: req.GroundID,
		SlotIDs:  []int64{req.SlotID},
		TeamID:   req.TeamID,
	})
	if err != nil {
		handleServiceError(c, err, "create free booking")
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// InitiatePayment - POST /api/bookings/initiatePayment
// Инициировать платеж: возвращает ссылку на страницу оплаты шлюза
func (h *Handlers) InitiatePayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	redirect, err := h.reservations.InitiatePaidBooking(c.Request.Context(), models.ReserveRequest{
		UserID:   actor.UserID,
		GroundID: req.GroundID,
		SlotIDs:  req.SlotIDs,
		TeamID:   req.TeamID,
		Amount:   req.Amount,
	})
	if err != nil {
		handleServiceError(c, err, "initiate payment")
		return
	}

	c.Header("Location", redirect.RedirectURL)
	c.JSON(http.StatusCreated, redirect)
}

// ListBookings - GET /api/bookings
// Получить список бронирований текущего пользователя
func (h *Handlers) ListBookings(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	bookings, err := h.bookings.ListByUser(c.Request.Context(), actor.UserID)
	if err != nil {
		handleServiceError(c, err, "list bookings")
		return
	}

	response := make(models.ListBookingsResponse, 0, len(bookings))
	for _, b := range bookings {
		response = append(response, models.ListBookingsResponseItem{
			ID:            b.ID,
			SlotID:        b.SlotID,
			Status:        b.Status,
			PaymentStatus: b.PaymentStatus,
			AmountPaid:    b.AmountPaid,
			IsFree:        b.IsFree,
		})
	}

	c.JSON(http.StatusOK, response)
}

// CancelBooking - PATCH /api/bookings/:id/cancel
// Отменить бронирование и освободить слот
func (h *Handlers) CancelBooking(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := h.reservations.CancelBooking(c.Request.Context(), bookingID, actor)
	if err != nil {
		handleServiceError(c, err, "cancel booking")
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CompleteBooking - PATCH /api/bookings/:id/complete
// Отметить бронирование сыгранным (администратор или владелец площадки)
func (h *Handlers) CompleteBooking(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := h.reservations.CompleteBooking(c.Request.Context(), bookingID, actor)
	if err != nil {
		handleServiceError(c, err, "complete booking")
		return
	}

	c.JSON(http.StatusOK, booking)
}

// GetLoyalty - GET /api/loyalty
// Прогресс пользователя до бесплатного бронирования
func (h *Handlers) GetLoyalty(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	status, err := h.loyalty.Status(c.Request.Context(), actor.UserID)
	if err != nil {
		handleServiceError(c, err, "get loyalty status")
		return
	}

	c.JSON(http.StatusOK, status)
}
