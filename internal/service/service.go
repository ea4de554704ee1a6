package service

import (
	"context"
	"time"

	"futsal/internal/external"
	"futsal/internal/logger"
	"futsal/internal/models"
)

// Transactor runs fn inside one database transaction. Nested calls join the outer one.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

type SlotRepository interface {
	ListAvailable(ctx context.Context, groundID int64, date time.Time) ([]models.Slot, error)
	GetByIDs(ctx context.Context, ids []int64) ([]models.Slot, error)
	LockByIDs(ctx context.Context, ids []int64) ([]models.Slot, error)
	MarkBooked(ctx context.Context, ids []int64) (int64, error)
	MarkFree(ctx context.Context, id int64) error
	VenueIDForSlot(ctx context.Context, slotID int64) (int64, error)
}

type GroundRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Ground, error)
	ListByVenue(ctx context.Context, venueID int64) ([]models.Ground, error)
}

type VenueRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Venue, error)
	Search(ctx context.Context, query string, limit int) ([]models.Venue, error)
}

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Booking, error)
	ListByIntent(ctx context.Context, reference string) ([]models.Booking, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

type LoyaltyRepository interface {
	Get(ctx context.Context, userID int64) (*models.LoyaltyCounter, error)
	LockForUpdate(ctx context.Context, userID int64) (*models.LoyaltyCounter, error)
	IncrementPaid(ctx context.Context, userID int64) (*models.LoyaltyCounter, error)
	ConsumeReward(ctx context.Context, userID int64, threshold int) (*models.LoyaltyCounter, error)
}

type IntentRepository interface {
	Create(ctx context.Context, intent *models.PaymentIntent) error
	GetByReference(ctx context.Context, reference string) (*models.PaymentIntent, error)
	GetByReferenceForUpdate(ctx context.Context, reference string) (*models.PaymentIntent, error)
	SetPaymentIndex(ctx context.Context, reference, paymentIndex string, expiresAt time.Time) (bool, error)
	MarkChecked(ctx context.Context, reference string) error
	Delete(ctx context.Context, reference string) (bool, error)
	ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// PaymentGateway is the hosted checkout provider
type PaymentGateway interface {
	CreatePaymentSession(ctx context.Context, req external.PaymentSessionRequest) (*external.PaymentSession, error)
	LookupPayment(ctx context.Context, paymentIndex string) (*external.PaymentLookup, error)
}

// SlotCache caches availability listings; it may be nil
type SlotCache interface {
	GetAvailableSlots(ctx context.Context, groundID int64, date time.Time) ([]models.Slot, bool, error)
	SetAvailableSlots(ctx context.Context, groundID int64, date time.Time, slots []models.Slot) error
	InvalidateAvailability(ctx context.Context, groundID int64, date time.Time) error
}

// VenueIndex is the full-text venue search; it may be nil
type VenueIndex interface {
	SearchVenues(ctx context.Context, query string, limit int) ([]models.Venue, error)
}

// Dependencies groups everything the services need
type Dependencies struct {
	Tx        Transactor
	Publisher EventPublisher
	Gateway   PaymentGateway
	Cache     SlotCache
	Index     VenueIndex

	Venues   VenueRepository
	Grounds  GroundRepository
	Slots    SlotRepository
	Bookings BookingRepository
	Loyalty  LoyaltyRepository
	Intents  IntentRepository
	Users    UserRepository

	LoyaltyThreshold int
}

type Services struct {
	Slots        *SlotService
	Loyalty      *LoyaltyService
	Bookings     *BookingService
	Intents      *IntentService
	Reservations *ReservationService
	Venues       *VenueService
}

func NewServices(deps Dependencies) *Services {
	slots := NewSlotService(deps.Slots, deps.Grounds, deps.Tx, deps.Cache)
	loyalty := NewLoyaltyService(deps.Loyalty, deps.LoyaltyThreshold)
	bookings := NewBookingService(deps.Bookings, deps.Slots, slots, deps.Tx, deps.Publisher)
	intents := NewIntentService(deps.Intents)
	reservations := NewReservationService(slots, loyalty, bookings, intents, deps.Grounds, deps.Users, deps.Gateway, deps.Tx, deps.Publisher)
	venues := NewVenueService(deps.Venues, deps.Grounds, deps.Index, slots)

	return &Services{
		Slots:        slots,
		Loyalty:      loyalty,
		Bookings:     bookings,
		Intents:      intents,
		Reservations: reservations,
		Venues:       venues,
	}
}

// publish logs failures instead of returning them; events never fail the operation
func publish(ctx context.Context, publisher EventPublisher, subject string, event interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(subject, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event",
			"error", err,
			"event_type", subject)
	}
}
