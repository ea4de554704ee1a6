package service

import (
	"context"
	"fmt"

	apperrors "futsal/internal/errors"
	"futsal/internal/models"
)

const DefaultLoyaltyThreshold = 7

// LoyaltyService: every threshold paid bookings earn one free booking
type LoyaltyService struct {
	repo      LoyaltyRepository
	threshold int
}

func NewLoyaltyService(repo LoyaltyRepository, threshold int) *LoyaltyService {
	if threshold <= 0 {
		threshold = DefaultLoyaltyThreshold
	}
	return &LoyaltyService{repo: repo, threshold: threshold}
}

func (s *LoyaltyService) Threshold() int {
	return s.threshold
}

func (s *LoyaltyService) IsEligibleForFreeBooking(ctx context.Context, userID int64) (bool, error) {
	counter, err := s.repo.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get loyalty counter: %w", err)
	}
	return counter.PaidSinceReward >= s.threshold, nil
}

// Lock serializes reward consumption for one user. Must run inside a transaction.
func (s *LoyaltyService) Lock(ctx context.Context, userID int64) (*models.LoyaltyCounter, error) {
	counter, err := s.repo.LockForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock loyalty counter: %w", err)
	}
	return counter, nil
}

// RecordBooking resets the counter after a free booking and increments it after a paid one.
// Recording a free booking for a user below the threshold fails with ErrInvalidState.
func (s *LoyaltyService) RecordBooking(ctx context.Context, userID int64, wasFree bool) (*models.LoyaltyCounter, error) {
	if wasFree {
		counter, err := s.repo.ConsumeReward(ctx, userID, s.threshold)
		if err != nil {
			return nil, fmt.Errorf("failed to consume reward: %w", err)
		}
		return counter, nil
	}

	counter, err := s.repo.IncrementPaid(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to record paid booking: %w", err)
	}
	return counter, nil
}

func (s *LoyaltyService) Status(ctx context.Context, userID int64) (*models.LoyaltyStatus, error) {
	counter, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loyalty counter: %w", err)
	}

	remaining := s.threshold - counter.PaidSinceReward
	if remaining < 0 {
		remaining = 0
	}

	return &models.LoyaltyStatus{
		UserID:              userID,
		PaidSinceReward:     counter.PaidSinceReward,
		FreeClaimed:         counter.FreeClaimed,
		Threshold:           s.threshold,
		Eligible:            counter.PaidSinceReward >= s.threshold,
		BookingsUntilReward: remaining,
	}, nil
}

// requireEligible is checked under the row lock on the free path
func (s *LoyaltyService) requireEligible(counter *models.LoyaltyCounter) error {
	if counter.PaidSinceReward < s.threshold {
		return fmt.Errorf("user %d has %d of %d paid bookings: %w",
			counter.UserID, counter.PaidSinceReward, s.threshold, apperrors.ErrInvalidRequest)
	}
	return nil
}
