package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "futsal/internal/errors"
	"futsal/internal/models"
)

// DefaultPaymentLinkLifetime is how long a gateway payment link stays payable
// when the gateway does not say otherwise
const DefaultPaymentLinkLifetime = 60 * time.Minute

// IntentService keeps payment intents between initiation and finalization
type IntentService struct {
	repo IntentRepository
}

func NewIntentService(repo IntentRepository) *IntentService {
	return &IntentService{repo: repo}
}

func (s *IntentService) Open(ctx context.Context, userID int64, slotIDs []int64, groundID int64, teamID *int64, amount int64) (*models.PaymentIntent, error) {
	if len(slotIDs) == 0 {
		return nil, fmt.Errorf("intent without slots: %w", apperrors.ErrInvalidRequest)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("intent amount %d: %w", amount, apperrors.ErrInvalidRequest)
	}

	ids := make([]int64, len(slotIDs))
	copy(ids, slotIDs)

	intent := &models.PaymentIntent{
		Reference: uuid.New().String(),
		UserID:    userID,
		GroundID:  groundID,
		SlotIDs:   ids,
		TeamID:    teamID,
		Amount:    amount,
	}

	if err := s.repo.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("failed to open payment intent: %w", err)
	}
	return intent, nil
}

// AttachPaymentIndex stores the gateway session. A zero expiresAt falls back to DefaultPaymentLinkLifetime.
func (s *IntentService) AttachPaymentIndex(ctx context.Context, reference, paymentIndex string, expiresAt time.Time) error {
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(DefaultPaymentLinkLifetime)
	}
	ok, err := s.repo.SetPaymentIndex(ctx, reference, paymentIndex, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to attach payment index: %w", err)
	}
	if !ok {
		return fmt.Errorf("intent %s: %w", reference, apperrors.ErrNotFound)
	}
	return nil
}

func (s *IntentService) Lookup(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	intent, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	if intent == nil {
		return nil, fmt.Errorf("intent %s: %w", reference, apperrors.ErrNotFound)
	}
	return intent, nil
}

// LookupForUpdate locks the intent. Must run inside a transaction.
func (s *IntentService) LookupForUpdate(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	intent, err := s.repo.GetByReferenceForUpdate(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment intent: %w", err)
	}
	if intent == nil {
		return nil, fmt.Errorf("intent %s: %w", reference, apperrors.ErrNotFound)
	}
	return intent, nil
}

// Finalize deletes a settled intent
func (s *IntentService) Finalize(ctx context.Context, reference string) error {
	ok, err := s.repo.Delete(ctx, reference)
	if err != nil {
		return fmt.Errorf("failed to finalize payment intent: %w", err)
	}
	if !ok {
		return fmt.Errorf("intent %s: %w", reference, apperrors.ErrNotFound)
	}
	return nil
}

// Discard deletes an intent that never reached the gateway or expired; a missing intent is fine
func (s *IntentService) Discard(ctx context.Context, reference string) error {
	if _, err := s.repo.Delete(ctx, reference); err != nil {
		return fmt.Errorf("failed to discard payment intent: %w", err)
	}
	return nil
}

// MarkChecked moves an unsettled intent to the back of the sweep order
func (s *IntentService) MarkChecked(ctx context.Context, reference string) error {
	if err := s.repo.MarkChecked(ctx, reference); err != nil {
		return fmt.Errorf("failed to mark payment intent checked: %w", err)
	}
	return nil
}

// ListStale returns intents older than ttl, least recently checked first
func (s *IntentService) ListStale(ctx context.Context, ttl time.Duration, limit int) ([]models.PaymentIntent, error) {
	intents, err := s.repo.ListCreatedBefore(ctx, time.Now().Add(-ttl), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale intents: %w", err)
	}
	return intents, nil
}
