package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "futsal/internal/errors"
	"futsal/internal/external"
	"futsal/internal/logger"
	"futsal/internal/metrics"
	"futsal/internal/models"
)

// ReservationService drives a reservation from slot choice to committed bookings.
// It is the only component that compensates for failures of the others.
type ReservationService struct {
	slots      *SlotService
	loyalty    *LoyaltyService
	bookings   *BookingService
	intents    *IntentService
	groundRepo GroundRepository
	userRepo   UserRepository
	gateway    PaymentGateway
	tx         Transactor
	publisher  EventPublisher
}

func NewReservationService(
	slots *SlotService,
	loyalty *LoyaltyService,
	bookings *BookingService,
	intents *IntentService,
	groundRepo GroundRepository,
	userRepo UserRepository,
	gateway PaymentGateway,
	tx Transactor,
	publisher EventPublisher,
) *ReservationService {
	return &ReservationService{
		slots:      slots,
		loyalty:    loyalty,
		bookings:   bookings,
		intents:    intents,
		groundRepo: groundRepo,
		userRepo:   userRepo,
		gateway:    gateway,
		tx:         tx,
		publisher:  publisher,
	}
}

// SweepReport summarizes one pass over stale intents
type SweepReport struct {
	Finalized int
	Expired   int
	Skipped   int
	Failed    int
}

// Reserve picks the free path for an eligible user booking one slot, the paid path otherwise
func (s *ReservationService) Reserve(ctx context.Context, req models.ReserveRequest) (*models.ReserveResult, error) {
	if len(req.SlotIDs) == 1 {
		eligible, err := s.loyalty.IsEligibleForFreeBooking(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if eligible {
			booking, err := s.InitiateFreeBooking(ctx, req)
			if err != nil {
				return nil, err
			}
			return &models.ReserveResult{State: models.StateFinalized, Booking: booking}, nil
		}
	}

	redirect, err := s.InitiatePaidBooking(ctx, req)
	if err != nil {
		return nil, err
	}
	return &models.ReserveResult{State: models.StatePendingGateway, Payment: redirect}, nil
}

// InitiateFreeBooking spends a loyalty reward on exactly one slot.
// Lock, claim, booking and counter reset share one transaction, so a failure leaves nothing behind.
func (s *ReservationService) InitiateFreeBooking(ctx context.Context, req models.ReserveRequest) (*models.Booking, error) {
	if len(req.SlotIDs) != 1 {
		return nil, fmt.Errorf("a reward covers one slot, got %d: %w", len(req.SlotIDs), apperrors.ErrInvalidRequest)
	}
	slotID := req.SlotIDs[0]

	var booking *models.Booking
	var claimed []models.Slot

	err := s.tx.Do(ctx, func(ctx context.Context) error {
		counter, err := s.loyalty.Lock(ctx, req.UserID)
		if err != nil {
			return err
		}
		if err := s.loyalty.requireEligible(counter); err != nil {
			return err
		}

		slots, err := s.slots.Claim(ctx, []int64{slotID})
		if err != nil {
			return err
		}
		if req.GroundID != 0 && slots[0].GroundID != req.GroundID {
			return fmt.Errorf("slot %d is not on ground %d: %w", slotID, req.GroundID, apperrors.ErrInvalidRequest)
		}

		b := &models.Booking{
			UserID:        req.UserID,
			TeamID:        req.TeamID,
			SlotID:        slotID,
			Status:        models.BookingStatusConfirmed,
			PaymentStatus: models.PaymentStatusPaid,
			AmountPaid:    0,
			IsFree:        true,
			Notes:         "loyalty reward",
		}
		if err := s.bookings.Create(ctx, b); err != nil {
			return err
		}

		if _, err := s.loyalty.RecordBooking(ctx, req.UserID, true); err != nil {
			return err
		}

		booking = b
		claimed = slots
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.slots.Invalidate(ctx, claimed)
	metrics.BookingsCreatedTotal.WithLabelValues("free").Inc()
	publish(ctx, s.publisher, models.EventBookingConfirmed, models.BookingConfirmedEvent{
		BookingIDs: []int64{booking.ID},
		UserID:     booking.UserID,
		SlotIDs:    []int64{booking.SlotID},
		IsFree:     true,
		Timestamp:  time.Now(),
	})

	logger.WithContext(ctx).Info("Free booking confirmed", "booking_id", booking.ID, "slot_id", booking.SlotID)
	return booking, nil
}

// InitiatePaidBooking opens an intent and a gateway session. Slots are checked but not claimed.
func (s *ReservationService) InitiatePaidBooking(ctx context.Context, req models.ReserveRequest) (*models.PaymentRedirect, error) {
	ids, err := normalizeSlotIDs(req.SlotIDs)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount %d: %w", req.Amount, apperrors.ErrInvalidRequest)
	}
	if len(ids) == 1 {
		eligible, err := s.loyalty.IsEligibleForFreeBooking(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if eligible {
			return nil, fmt.Errorf("user %d has a free booking to claim for a single slot: %w", req.UserID, apperrors.ErrInvalidRequest)
		}
	}

	ground, err := s.groundRepo.GetByID(ctx, req.GroundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ground: %w", err)
	}
	if ground == nil {
		return nil, fmt.Errorf("ground %d: %w", req.GroundID, apperrors.ErrNotFound)
	}
	if !ground.IsAvailable {
		return nil, fmt.Errorf("ground %d is closed: %w", ground.ID, apperrors.ErrInvalidRequest)
	}

	slots, err := s.slots.Get(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(slots) != len(ids) {
		return nil, fmt.Errorf("%d of %d slots exist: %w", len(slots), len(ids), apperrors.ErrInvalidRequest)
	}
	for _, slot := range slots {
		if slot.GroundID != ground.ID {
			return nil, fmt.Errorf("slot %d is not on ground %d: %w", slot.ID, ground.ID, apperrors.ErrInvalidRequest)
		}
		if slot.IsBooked {
			return nil, fmt.Errorf("slot %d: %w", slot.ID, apperrors.ErrSlotUnavailable)
		}
	}

	fullPrice := ground.PricePerHour * int64(len(ids))
	if req.Amount > fullPrice {
		return nil, fmt.Errorf("amount %d exceeds price %d: %w", req.Amount, fullPrice, apperrors.ErrInvalidRequest)
	}

	intent, err := s.intents.Open(ctx, req.UserID, ids, ground.ID, req.TeamID, req.Amount)
	if err != nil {
		return nil, err
	}

	sessionReq := external.PaymentSessionRequest{
		Reference: intent.Reference,
		Amount:    intent.Amount,
		OrderName: orderName(ground, slots),
	}
	if s.userRepo != nil {
		if user, err := s.userRepo.GetByID(ctx, req.UserID); err == nil && user != nil {
			sessionReq.CustomerName = user.FullName
			sessionReq.CustomerEmail = user.Email
		}
	}

	session, err := s.gateway.CreatePaymentSession(ctx, sessionReq)
	if err != nil {
		s.discardIntent(ctx, intent.Reference)
		return nil, fmt.Errorf("failed to create payment session: %w", err)
	}

	if err := s.intents.AttachPaymentIndex(ctx, intent.Reference, session.PaymentIndex, session.ExpiresAt); err != nil {
		s.discardIntent(ctx, intent.Reference)
		return nil, err
	}

	publish(ctx, s.publisher, models.EventPaymentInitiated, models.PaymentInitiatedEvent{
		Reference:    intent.Reference,
		UserID:       intent.UserID,
		Amount:       intent.Amount,
		PaymentIndex: session.PaymentIndex,
		Timestamp:    time.Now(),
	})

	logger.WithContext(ctx).Info("Payment initiated",
		"reference", intent.Reference,
		"payment_index", session.PaymentIndex,
		"amount", intent.Amount,
		"slots", len(ids))

	return &models.PaymentRedirect{
		RedirectURL: session.PaymentURL,
		Reference:   intent.Reference,
	}, nil
}

// HandleGatewayCallback verifies the payment with the gateway and settles the intent.
// A callback for an already settled intent is a successful no-op.
func (s *ReservationService) HandleGatewayCallback(ctx context.Context, reference, paymentIndex string) (*models.FinalizeResult, error) {
	intent, err := s.intents.Lookup(ctx, reference)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.checkSettledCallback(ctx, reference, paymentIndex)
		return alreadyProcessed(reference), nil
	}
	if err != nil {
		return nil, err
	}

	if intent.PaymentIndex == nil || *intent.PaymentIndex != paymentIndex {
		metrics.CallbacksTotal.WithLabelValues("mismatch").Inc()
		return nil, fmt.Errorf("payment index does not match intent %s: %w", reference, apperrors.ErrInvalidRequest)
	}

	lookup, err := s.gateway.LookupPayment(ctx, paymentIndex)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues("gateway_unavailable").Inc()
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}

	if err := verifyLookup(intent, lookup); err != nil {
		metrics.CallbacksTotal.WithLabelValues("declined").Inc()
		publish(ctx, s.publisher, models.EventPaymentDeclined, models.PaymentDeclinedEvent{
			Reference:    reference,
			PaymentIndex: paymentIndex,
			Status:       lookup.RawStatus,
			Timestamp:    time.Now(),
		})
		logger.WithContext(ctx).Warn("Payment not completed", "reference", reference, "status", lookup.RawStatus)
		return &models.FinalizeResult{State: models.StateDeclined, Reference: reference}, err
	}

	result, err := s.finalize(ctx, reference)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if result.AlreadyProcessed {
		metrics.CallbacksTotal.WithLabelValues("already_processed").Inc()
	} else {
		metrics.CallbacksTotal.WithLabelValues("finalized").Inc()
	}
	return result, nil
}

// finalize claims the slots, writes the bookings, records loyalty and deletes the intent in one transaction.
// Slots taken by someone else since initiation are reported in LostSlotIDs.
func (s *ReservationService) finalize(ctx context.Context, reference string) (*models.FinalizeResult, error) {
	var result *models.FinalizeResult
	var intent *models.PaymentIntent
	var claimed []models.Slot
	var created []models.Booking

	err := s.tx.Do(ctx, func(ctx context.Context) error {
		result, intent, claimed, created = nil, nil, nil, nil

		locked, err := s.intents.LookupForUpdate(ctx, reference)
		if errors.Is(err, apperrors.ErrNotFound) {
			result = alreadyProcessed(reference)
			return nil
		}
		if err != nil {
			return err
		}
		intent = locked

		existing, err := s.bookings.ListByIntent(ctx, reference)
		if err != nil {
			return err
		}
		written := make(map[int64]models.Booking, len(existing))
		for _, b := range existing {
			written[b.SlotID] = b
		}

		paymentStatus, err := s.paymentStatusFor(ctx, intent)
		if err != nil {
			return err
		}

		ids := make([]int64, len(intent.SlotIDs))
		copy(ids, intent.SlotIDs)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		shares := splitAmount(intent.Amount, len(ids))

		res := &models.FinalizeResult{State: models.StateFinalized, Reference: reference}
		for i, slotID := range ids {
			if b, ok := written[slotID]; ok {
				res.Bookings = append(res.Bookings, b)
				continue
			}

			slot, ok, err := s.slots.TryClaimOne(ctx, slotID)
			if err != nil {
				return err
			}
			if !ok {
				res.LostSlotIDs = append(res.LostSlotIDs, slotID)
				continue
			}

			ref := reference
			b := &models.Booking{
				UserID:          intent.UserID,
				TeamID:          intent.TeamID,
				SlotID:          slotID,
				IntentReference: &ref,
				Status:          models.BookingStatusConfirmed,
				PaymentStatus:   paymentStatus,
				AmountPaid:      shares[i],
			}
			if err := s.bookings.Create(ctx, b); err != nil {
				return err
			}

			claimed = append(claimed, *slot)
			created = append(created, *b)
			res.Bookings = append(res.Bookings, *b)
		}

		if len(created) > 0 {
			if _, err := s.loyalty.RecordBooking(ctx, intent.UserID, false); err != nil {
				return err
			}
		}

		if err := s.intents.Finalize(ctx, reference); err != nil {
			return err
		}

		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.AlreadyProcessed {
		return result, nil
	}

	s.slots.Invalidate(ctx, claimed)
	s.announceFinalized(ctx, intent, result, created)
	return result, nil
}

// checkSettledCallback handles a callback whose intent is gone. Normally the intent was finalized
// and its bookings exist. Otherwise a completed payment has nothing to book, which is reported
// as unfulfilled for a manual refund.
func (s *ReservationService) checkSettledCallback(ctx context.Context, reference, paymentIndex string) {
	log := logger.WithContext(ctx)

	existing, err := s.bookings.ListByIntent(ctx, reference)
	if err != nil {
		log.Error("Failed to check bookings for settled intent", "reference", reference, "error", err)
		return
	}
	if len(existing) > 0 || paymentIndex == "" {
		metrics.CallbacksTotal.WithLabelValues("already_processed").Inc()
		return
	}

	lookup, err := s.gateway.LookupPayment(ctx, paymentIndex)
	if err != nil {
		log.Warn("Callback for unknown intent could not be verified", "reference", reference, "payment_index", paymentIndex, "error", err)
		metrics.CallbacksTotal.WithLabelValues("already_processed").Inc()
		return
	}
	if lookup.Status != external.PaymentCompleted {
		log.Info("Callback for unknown intent", "reference", reference, "payment_index", paymentIndex, "status", lookup.RawStatus)
		metrics.CallbacksTotal.WithLabelValues("already_processed").Inc()
		return
	}

	metrics.CallbacksTotal.WithLabelValues("orphaned").Inc()
	log.Error("Completed payment has no intent to book",
		"reference", reference,
		"payment_index", paymentIndex,
		"amount", lookup.TotalAmount,
		"transaction_id", lookup.TransactionID)
	publish(ctx, s.publisher, models.EventPaymentUnfulfilled, models.PaymentUnfulfilledEvent{
		Reference: reference,
		Amount:    lookup.TotalAmount,
		Timestamp: time.Now(),
	})
}

func (s *ReservationService) announceFinalized(ctx context.Context, intent *models.PaymentIntent, result *models.FinalizeResult, created []models.Booking) {
	log := logger.WithContext(ctx)

	if len(created) > 0 {
		metrics.BookingsCreatedTotal.WithLabelValues("paid").Add(float64(len(created)))

		ids := make([]int64, 0, len(created))
		slotIDs := make([]int64, 0, len(created))
		for _, b := range created {
			ids = append(ids, b.ID)
			slotIDs = append(slotIDs, b.SlotID)
		}
		publish(ctx, s.publisher, models.EventBookingConfirmed, models.BookingConfirmedEvent{
			BookingIDs: ids,
			UserID:     intent.UserID,
			SlotIDs:    slotIDs,
			Reference:  intent.Reference,
			Timestamp:  time.Now(),
		})
	}

	if len(result.LostSlotIDs) > 0 {
		log.Warn("Paid intent finalized with lost slots",
			"reference", intent.Reference,
			"lost_slot_ids", result.LostSlotIDs,
			"bookings", len(result.Bookings))
		publish(ctx, s.publisher, models.EventPaymentUnfulfilled, models.PaymentUnfulfilledEvent{
			Reference:   intent.Reference,
			UserID:      intent.UserID,
			LostSlotIDs: result.LostSlotIDs,
			Amount:      intent.Amount,
			Timestamp:   time.Now(),
		})
		return
	}

	log.Info("Paid intent finalized", "reference", intent.Reference, "bookings", len(result.Bookings))
}

// ReconcileStale settles an intent whose callback never arrived.
// Completed payments are finalized. Payments that failed, or were never started before
// the payment link expired, are expired.
func (s *ReservationService) ReconcileStale(ctx context.Context, intent models.PaymentIntent) (models.ReservationState, error) {
	if intent.PaymentIndex == nil {
		return s.expire(ctx, intent, "no payment session")
	}

	lookup, err := s.gateway.LookupPayment(ctx, *intent.PaymentIndex)
	if err != nil {
		return models.StatePendingGateway, fmt.Errorf("failed to verify payment: %w", err)
	}

	switch {
	case lookup.Status == external.PaymentCompleted:
		if err := verifyLookup(&intent, lookup); err != nil {
			logger.WithContext(ctx).Error("Completed payment does not match intent",
				"reference", intent.Reference,
				"expected", intent.Amount,
				"paid", lookup.TotalAmount)
			return models.StatePendingGateway, err
		}
		if _, err := s.finalize(ctx, intent.Reference); err != nil {
			return models.StateVerified, err
		}
		return models.StateFinalized, nil
	case lookup.Status == external.PaymentPending && lookup.RawStatus == "Pending":
		return models.StatePendingGateway, nil
	case lookup.Status == external.PaymentPending && time.Now().Before(paymentLinkDeadline(intent)):
		// the customer can still pay through the link
		return models.StatePendingGateway, nil
	default:
		return s.expire(ctx, intent, lookup.RawStatus)
	}
}

// SweepStale reconciles intents older than ttl
func (s *ReservationService) SweepStale(ctx context.Context, ttl time.Duration, limit int) (SweepReport, error) {
	var report SweepReport

	intents, err := s.intents.ListStale(ctx, ttl, limit)
	if err != nil {
		return report, err
	}

	for _, intent := range intents {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		state, err := s.ReconcileStale(ctx, intent)
		if err != nil || (state != models.StateFinalized && state != models.StateExpired) {
			if err := s.intents.MarkChecked(ctx, intent.Reference); err != nil {
				logger.WithContext(ctx).Warn("Failed to mark intent checked", "reference", intent.Reference, "error", err)
			}
		}

		switch {
		case err != nil && errors.Is(err, apperrors.ErrGatewayUnavailable):
			report.Skipped++
			metrics.IntentsSweptTotal.WithLabelValues("skipped").Inc()
		case err != nil:
			report.Failed++
			metrics.IntentsSweptTotal.WithLabelValues("failed").Inc()
			logger.WithContext(ctx).Error("Failed to reconcile intent", "reference", intent.Reference, "error", err)
		case state == models.StateFinalized:
			report.Finalized++
			metrics.IntentsSweptTotal.WithLabelValues("finalized").Inc()
		case state == models.StateExpired:
			report.Expired++
			metrics.IntentsSweptTotal.WithLabelValues("expired").Inc()
		default:
			report.Skipped++
			metrics.IntentsSweptTotal.WithLabelValues("skipped").Inc()
		}
	}

	return report, nil
}

func (s *ReservationService) expire(ctx context.Context, intent models.PaymentIntent, reason string) (models.ReservationState, error) {
	if err := s.intents.Discard(ctx, intent.Reference); err != nil {
		return models.StatePendingGateway, err
	}

	age := time.Since(intent.CreatedAt).Round(time.Second)
	publish(ctx, s.publisher, models.EventIntentExpired, models.IntentExpiredEvent{
		Reference: intent.Reference,
		UserID:    intent.UserID,
		Age:       age.String(),
		Timestamp: time.Now(),
	})
	logger.WithContext(ctx).Info("Payment intent expired", "reference", intent.Reference, "reason", reason, "age", age)
	return models.StateExpired, nil
}

// discardIntent removes an intent left without a gateway session, even if the request was cancelled
func (s *ReservationService) discardIntent(ctx context.Context, reference string) {
	if err := s.intents.Discard(context.WithoutCancel(ctx), reference); err != nil {
		logger.WithContext(ctx).Error("Failed to discard payment intent", "reference", reference, "error", err)
	}
}

func (s *ReservationService) paymentStatusFor(ctx context.Context, intent *models.PaymentIntent) (string, error) {
	ground, err := s.groundRepo.GetByID(ctx, intent.GroundID)
	if err != nil {
		return "", fmt.Errorf("failed to get ground: %w", err)
	}
	if ground != nil && intent.Amount < ground.PricePerHour*int64(len(intent.SlotIDs)) {
		return models.PaymentStatusDownPayment, nil
	}
	return models.PaymentStatusPaid, nil
}

func (s *ReservationService) CancelBooking(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error) {
	return s.bookings.Cancel(ctx, bookingID, actor)
}

func (s *ReservationService) CompleteBooking(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error) {
	return s.bookings.Complete(ctx, bookingID, actor)
}

func (s *ReservationService) ListAvailable(ctx context.Context, groundID int64, date time.Time) ([]models.Slot, error) {
	return s.slots.ListAvailable(ctx, groundID, date)
}

func verifyLookup(intent *models.PaymentIntent, lookup *external.PaymentLookup) error {
	if lookup.Status != external.PaymentCompleted {
		return fmt.Errorf("payment %s: %w", lookup.RawStatus, apperrors.ErrDeclined)
	}
	if lookup.TotalAmount != intent.Amount {
		return fmt.Errorf("paid %d, expected %d: %w", lookup.TotalAmount, intent.Amount, apperrors.ErrDeclined)
	}
	return nil
}

func paymentLinkDeadline(intent models.PaymentIntent) time.Time {
	if intent.ExpiresAt != nil {
		return *intent.ExpiresAt
	}
	return intent.CreatedAt.Add(DefaultPaymentLinkLifetime)
}

func alreadyProcessed(reference string) *models.FinalizeResult {
	return &models.FinalizeResult{
		State:            models.StateFinalized,
		Reference:        reference,
		AlreadyProcessed: true,
	}
}

// splitAmount divides total evenly; the remainder goes to the first share
func splitAmount(total int64, n int) []int64 {
	shares := make([]int64, n)
	if n == 0 {
		return shares
	}
	base := total / int64(n)
	for i := range shares {
		shares[i] = base
	}
	shares[0] += total - base*int64(n)
	return shares
}

func orderName(ground *models.Ground, slots []models.Slot) string {
	hours := make([]string, 0, len(slots))
	for _, slot := range slots {
		hours = append(hours, fmt.Sprintf("%s %02d:00", slot.Date.Format(models.DateLayout), slot.StartHour))
	}
	return fmt.Sprintf("%s: %s", ground.Name, strings.Join(hours, ", "))
}
