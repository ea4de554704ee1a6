package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	apperrors "futsal/internal/errors"
	"futsal/internal/logger"
	"futsal/internal/metrics"
	"futsal/internal/models"
)

type SlotService struct {
	slotRepo   SlotRepository
	groundRepo GroundRepository
	tx         Transactor
	cache      SlotCache
}

func NewSlotService(slotRepo SlotRepository, groundRepo GroundRepository, tx Transactor, cache SlotCache) *SlotService {
	return &SlotService{
		slotRepo:   slotRepo,
		groundRepo: groundRepo,
		tx:         tx,
		cache:      cache,
	}
}

// ListAvailable returns the unbooked slots of a ground on a date, ordered by start hour
func (s *SlotService) ListAvailable(ctx context.Context, groundID int64, date time.Time) ([]models.Slot, error) {
	ground, err := s.groundRepo.GetByID(ctx, groundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ground: %w", err)
	}
	if ground == nil {
		return nil, fmt.Errorf("ground %d: %w", groundID, apperrors.ErrNotFound)
	}

	if s.cache != nil {
		cached, ok, err := s.cache.GetAvailableSlots(ctx, groundID, date)
		if err != nil {
			logger.WithContext(ctx).Warn("Availability cache read failed", "error", err, "ground_id", groundID)
		} else if ok {
			return cached, nil
		}
	}

	slots, err := s.slotRepo.ListAvailable(ctx, groundID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetAvailableSlots(ctx, groundID, date, slots); err != nil {
			logger.WithContext(ctx).Warn("Availability cache write failed", "error", err, "ground_id", groundID)
		}
	}

	return slots, nil
}

// Claim books every slot or none. Locks are taken in ascending id order.
// Joins the caller's transaction when there is one.
func (s *SlotService) Claim(ctx context.Context, slotIDs []int64) ([]models.Slot, error) {
	ids, err := normalizeSlotIDs(slotIDs)
	if err != nil {
		return nil, err
	}

	var claimed []models.Slot
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		locked, ok, err := s.claimLocked(ctx, ids)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("slots %v: %w", ids, apperrors.ErrSlotUnavailable)
		}
		claimed = locked
		return nil
	})
	if err != nil {
		metrics.SlotClaimsTotal.WithLabelValues(claimOutcome(err)).Inc()
		return nil, err
	}

	metrics.SlotClaimsTotal.WithLabelValues("claimed").Inc()
	return claimed, nil
}

func claimOutcome(err error) string {
	if errors.Is(err, apperrors.ErrSlotUnavailable) {
		return "conflict"
	}
	return "error"
}

// TryClaimOne claims a single slot inside the caller's transaction.
// A taken or missing slot is reported with ok=false and leaves the transaction usable.
func (s *SlotService) TryClaimOne(ctx context.Context, slotID int64) (*models.Slot, bool, error) {
	locked, ok, err := s.claimLocked(ctx, []int64{slotID})
	if err != nil {
		return nil, false, err
	}
	if !ok {
		metrics.SlotClaimsTotal.WithLabelValues("conflict").Inc()
		return nil, false, nil
	}
	metrics.SlotClaimsTotal.WithLabelValues("claimed").Inc()
	return &locked[0], true, nil
}

// claimLocked expects sorted, distinct ids and an open transaction
func (s *SlotService) claimLocked(ctx context.Context, ids []int64) ([]models.Slot, bool, error) {
	locked, err := s.slotRepo.LockByIDs(ctx, ids)
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock slots: %w", err)
	}
	if len(locked) != len(ids) {
		return nil, false, nil
	}
	for _, slot := range locked {
		if slot.IsBooked {
			return nil, false, nil
		}
	}

	n, err := s.slotRepo.MarkBooked(ctx, ids)
	if err != nil {
		return nil, false, fmt.Errorf("failed to book slots: %w", err)
	}
	if n != int64(len(ids)) {
		return nil, false, fmt.Errorf("booked %d of %d locked slots: %w", n, len(ids), apperrors.ErrInvalidState)
	}

	for i := range locked {
		locked[i].IsBooked = true
	}
	return locked, true, nil
}

// Get returns the slots with the given ids; missing ids are simply absent
func (s *SlotService) Get(ctx context.Context, slotIDs []int64) ([]models.Slot, error) {
	slots, err := s.slotRepo.GetByIDs(ctx, slotIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get slots: %w", err)
	}
	return slots, nil
}

// Release frees a slot. Releasing an already free slot is a no-op.
func (s *SlotService) Release(ctx context.Context, slotID int64) error {
	if err := s.slotRepo.MarkFree(ctx, slotID); err != nil {
		return fmt.Errorf("failed to release slot %d: %w", slotID, err)
	}
	return nil
}

// Invalidate drops cached availability for the grounds and dates touched. Call after commit.
func (s *SlotService) Invalidate(ctx context.Context, slots []models.Slot) {
	if s.cache == nil {
		return
	}

	type key struct {
		groundID int64
		date     string
	}
	seen := make(map[key]bool)
	for _, slot := range slots {
		k := key{slot.GroundID, slot.Date.Format(models.DateLayout)}
		if seen[k] {
			continue
		}
		seen[k] = true
		if err := s.cache.InvalidateAvailability(ctx, slot.GroundID, slot.Date); err != nil {
			logger.WithContext(ctx).Warn("Availability cache invalidation failed",
				"error", err, "ground_id", slot.GroundID)
		}
	}
}

// normalizeSlotIDs sorts ids and rejects empty or duplicated input
func normalizeSlotIDs(slotIDs []int64) ([]int64, error) {
	if len(slotIDs) == 0 {
		return nil, fmt.Errorf("no slots requested: %w", apperrors.ErrInvalidRequest)
	}

	ids := make([]int64, len(slotIDs))
	copy(ids, slotIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			return nil, fmt.Errorf("slot %d requested twice: %w", ids[i], apperrors.ErrInvalidRequest)
		}
	}
	return ids, nil
}
