package service

import (
	"context"
	"fmt"
	"time"

	apperrors "futsal/internal/errors"
	"futsal/internal/logger"
	"futsal/internal/models"
)

type BookingService struct {
	bookingRepo BookingRepository
	slotRepo    SlotRepository
	slots       *SlotService
	tx          Transactor
	publisher   EventPublisher
}

func NewBookingService(bookingRepo BookingRepository, slotRepo SlotRepository, slots *SlotService, tx Transactor, publisher EventPublisher) *BookingService {
	return &BookingService{
		bookingRepo: bookingRepo,
		slotRepo:    slotRepo,
		slots:       slots,
		tx:          tx,
		publisher:   publisher,
	}
}

// Create writes a booking for a slot that is already claimed in the current transaction
func (s *BookingService) Create(ctx context.Context, booking *models.Booking) error {
	if booking.Status == "" {
		booking.Status = models.BookingStatusConfirmed
	}
	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (s *BookingService) ListByUser(ctx context.Context, userID int64) ([]models.Booking, error) {
	bookings, err := s.bookingRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	return bookings, nil
}

// ListByIntent returns bookings already written for a payment intent
func (s *BookingService) ListByIntent(ctx context.Context, reference string) ([]models.Booking, error) {
	bookings, err := s.bookingRepo.ListByIntent(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to get intent bookings: %w", err)
	}
	return bookings, nil
}

// Cancel frees the booking's slot. Cancelling twice is a no-op; completed bookings cannot be cancelled.
func (s *BookingService) Cancel(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error) {
	var booking *models.Booking
	var released bool

	err := s.tx.Do(ctx, func(ctx context.Context) error {
		b, err := s.bookingRepo.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("failed to get booking: %w", err)
		}
		if b == nil {
			return fmt.Errorf("booking %d: %w", bookingID, apperrors.ErrNotFound)
		}

		if b.UserID != actor.UserID {
			if err := s.authorizeVenueStaff(ctx, b, actor); err != nil {
				return err
			}
		}

		switch b.Status {
		case models.BookingStatusCancelled:
			booking = b
			return nil
		case models.BookingStatusCompleted:
			return fmt.Errorf("booking %d is completed: %w", bookingID, apperrors.ErrInvalidRequest)
		}

		wasLive := b.IsLive()
		if err := s.bookingRepo.UpdateStatus(ctx, b.ID, models.BookingStatusCancelled); err != nil {
			return fmt.Errorf("failed to cancel booking: %w", err)
		}
		if wasLive {
			if err := s.slots.Release(ctx, b.SlotID); err != nil {
				return err
			}
			released = true
		}

		b.Status = models.BookingStatusCancelled
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if released {
		s.invalidateSlot(ctx, booking.SlotID)
		publish(ctx, s.publisher, models.EventBookingCancelled, models.BookingCancelledEvent{
			BookingID:   booking.ID,
			SlotID:      booking.SlotID,
			CancelledBy: actor.UserID,
			Timestamp:   time.Now(),
		})
		logger.WithContext(ctx).Info("Booking cancelled", "booking_id", booking.ID, "slot_id", booking.SlotID)
	}

	return booking, nil
}

// Complete marks a confirmed booking as played. Only venue staff may do it; the slot stays booked.
func (s *BookingService) Complete(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error) {
	var booking *models.Booking
	var completed bool

	err := s.tx.Do(ctx, func(ctx context.Context) error {
		b, err := s.bookingRepo.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("failed to get booking: %w", err)
		}
		if b == nil {
			return fmt.Errorf("booking %d: %w", bookingID, apperrors.ErrNotFound)
		}

		if err := s.authorizeVenueStaff(ctx, b, actor); err != nil {
			return err
		}

		switch b.Status {
		case models.BookingStatusCompleted:
			booking = b
			return nil
		case models.BookingStatusConfirmed:
		default:
			return fmt.Errorf("booking %d is %s: %w", bookingID, b.Status, apperrors.ErrInvalidRequest)
		}

		if err := s.bookingRepo.UpdateStatus(ctx, b.ID, models.BookingStatusCompleted); err != nil {
			return fmt.Errorf("failed to complete booking: %w", err)
		}

		b.Status = models.BookingStatusCompleted
		booking = b
		completed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completed {
		publish(ctx, s.publisher, models.EventBookingCompleted, models.BookingCompletedEvent{
			BookingID: booking.ID,
			UserID:    booking.UserID,
			Timestamp: time.Now(),
		})
	}

	return booking, nil
}

// authorizeVenueStaff allows admins and the owner of the venue the booking belongs to
func (s *BookingService) authorizeVenueStaff(ctx context.Context, b *models.Booking, actor models.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role != models.RoleOwner {
		return fmt.Errorf("booking %d: %w", b.ID, apperrors.ErrForbidden)
	}

	venueID, err := s.slotRepo.VenueIDForSlot(ctx, b.SlotID)
	if err != nil {
		return fmt.Errorf("failed to resolve venue: %w", err)
	}
	if !actor.ManagesVenue(venueID) {
		return fmt.Errorf("booking %d: %w", b.ID, apperrors.ErrForbidden)
	}
	return nil
}

func (s *BookingService) invalidateSlot(ctx context.Context, slotID int64) {
	slots, err := s.slotRepo.GetByIDs(ctx, []int64{slotID})
	if err != nil {
		logger.WithContext(ctx).Warn("Failed to load slot for cache invalidation", "error", err, "slot_id", slotID)
		return
	}
	s.slots.Invalidate(ctx, slots)
}
