package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	apperrors "futsal/internal/errors"
	"futsal/internal/logger"
	"futsal/internal/middleware"
	"futsal/internal/models"

	"github.com/gin-gonic/gin"
)

// ReservationService - сценарии бронирования и оплаты
type ReservationService interface {
	Reserve(ctx context.Context, req models.ReserveRequest) (*models.ReserveResult, error)
	InitiateFreeBooking(ctx context.Context, req models.ReserveRequest) (*models.Booking, error)
	InitiatePaidBooking(ctx context.Context, req models.ReserveRequest) (*models.PaymentRedirect, error)
	HandleGatewayCallback(ctx context.Context, reference, paymentIndex string) (*models.FinalizeResult, error)
	CancelBooking(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error)
	CompleteBooking(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error)
	ListAvailable(ctx context.Context, groundID int64, date time.Time) ([]models.Slot, error)
}

// BookingLister - бронирования пользователя
type BookingLister interface {
	ListByUser(ctx context.Context, userID int64) ([]models.Booking, error)
}

// LoyaltyReader - состояние программы лояльности
type LoyaltyReader interface {
	Status(ctx context.Context, userID int64) (*models.LoyaltyStatus, error)
}

// VenueFinder - поиск площадок и их свободных слотов
type VenueFinder interface {
	Search(ctx context.Context, query string, limit int) ([]models.Venue, error)
	AvailableSlots(ctx context.Context, venueID int64, date time.Time) (*models.VenueSlotsResponse, error)
}

type Handlers struct {
	reservations ReservationService
	bookings     BookingLister
	loyalty      LoyaltyReader
	venues       VenueFinder
}

func NewHandlers(reservations ReservationService, bookings BookingLister, loyalty LoyaltyReader, venues VenueFinder) *Handlers {
	return &Handlers{
		reservations: reservations,
		bookings:     bookings,
		loyalty:      loyalty,
		venues:       venues,
	}
}

// handleServiceError переводит ошибки сервисов в HTTP-ответы
func handleServiceError(c *gin.Context, err error, action string) {
	log := logger.WithContext(c.Request.Context())

	switch {
	case errors.Is(err, apperrors.ErrSlotUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "Slot is not available"})
	case errors.Is(err, apperrors.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, apperrors.ErrDeclined):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment was not completed", "state": models.StateDeclined})
	case errors.Is(err, apperrors.ErrGatewayUnavailable):
		log.Warn("Payment gateway unavailable", "action", action, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment gateway unavailable"})
	default:
		log.Error("Failed to "+action, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
	_ = c.Error(err)
}

// currentActor отвечает 401, если BasicAuth не установил пользователя
func currentActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return models.Actor{}, false
	}
	return actor, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

// slotDate разбирает обязательный параметр date
func slotDate(c *gin.Context) (time.Time, bool) {
	var query models.ListSlotsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return time.Time{}, false
	}
	date, err := time.Parse(models.DateLayout, query.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}
