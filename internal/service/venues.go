package service

import (
	"context"
	"fmt"
	"time"

	apperrors "futsal/internal/errors"
	"futsal/internal/logger"
	"futsal/internal/models"
)

const defaultVenueSearchLimit = 20

type VenueService struct {
	venueRepo  VenueRepository
	groundRepo GroundRepository
	index      VenueIndex
	slots      *SlotService
}

func NewVenueService(venueRepo VenueRepository, groundRepo GroundRepository, index VenueIndex, slots *SlotService) *VenueService {
	return &VenueService{
		venueRepo:  venueRepo,
		groundRepo: groundRepo,
		index:      index,
		slots:      slots,
	}
}

// Search uses the search index when configured and falls back to SQL when it is missing or failing
func (s *VenueService) Search(ctx context.Context, query string, limit int) ([]models.Venue, error) {
	if limit <= 0 {
		limit = defaultVenueSearchLimit
	}

	if s.index != nil {
		venues, err := s.index.SearchVenues(ctx, query, limit)
		if err == nil {
			return venues, nil
		}
		logger.WithContext(ctx).Warn("Venue index search failed, falling back to database", "error", err)
	}

	venues, err := s.venueRepo.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search venues: %w", err)
	}
	return venues, nil
}

// AvailableSlots lists free slots across every open ground of a venue
func (s *VenueService) AvailableSlots(ctx context.Context, venueID int64, date time.Time) (*models.VenueSlotsResponse, error) {
	venue, err := s.venueRepo.GetByID(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	if venue == nil || !venue.IsActive {
		return nil, fmt.Errorf("venue %d: %w", venueID, apperrors.ErrNotFound)
	}

	grounds, err := s.groundRepo.ListByVenue(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grounds: %w", err)
	}

	resp := &models.VenueSlotsResponse{
		VenueID: venueID,
		Date:    date.Format(models.DateLayout),
		Grounds: make([]models.GroundSlots, 0, len(grounds)),
	}
	for _, ground := range grounds {
		if !ground.IsAvailable {
			continue
		}
		slots, err := s.slots.ListAvailable(ctx, ground.ID, date)
		if err != nil {
			return nil, err
		}
		resp.Grounds = append(resp.Grounds, models.GroundSlots{
			GroundID:     ground.ID,
			GroundName:   ground.Name,
			PricePerHour: ground.PricePerHour,
			Slots:        models.ToListSlotsResponse(slots),
		})
	}

	return resp, nil
}
