package models

// Actor is the authenticated caller of a core operation
type Actor struct {
	UserID  int64
	Role    string
	VenueID *int64
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// ManagesVenue reports whether the actor administers the given venue
func (a Actor) ManagesVenue(venueID int64) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == RoleOwner && a.VenueID != nil && *a.VenueID == venueID
}

// ReservationState is the lifecycle position of a reservation attempt
type ReservationState string

const (
	StateInitiated      ReservationState = "INITIATED"
	StateFreePath       ReservationState = "FREE_PATH"
	StatePaidPath       ReservationState = "PAID_PATH"
	StatePendingGateway ReservationState = "PENDING_GATEWAY"
	StateVerified       ReservationState = "VERIFIED"
	StateFinalized      ReservationState = "FINALIZED"
	StateDeclined       ReservationState = "DECLINED"
	StateExpired        ReservationState = "EXPIRED"
)

// ReserveRequest is the input to a reservation attempt
type ReserveRequest struct {
	UserID   int64
	GroundID int64
	SlotIDs  []int64
	TeamID   *int64
	Amount   int64
}

// PaymentRedirect is returned once a gateway session exists
type PaymentRedirect struct {
	RedirectURL string `json:"redirect_url"`
	Reference   string `json:"reference"`
}

// ReserveResult describes which path a reservation took
type ReserveResult struct {
	State   ReservationState `json:"state"`
	Booking *Booking         `json:"booking,omitempty"`
	Payment *PaymentRedirect `json:"payment,omitempty"`
}

// FinalizeResult is the outcome of settling an intent.
// LostSlotIDs lists slots taken by someone else between initiation and settlement.
type FinalizeResult struct {
	State            ReservationState `json:"state"`
	Reference        string           `json:"reference"`
	Bookings         []Booking        `json:"bookings"`
	LostSlotIDs      []int64          `json:"lost_slot_ids,omitempty"`
	AlreadyProcessed bool             `json:"already_processed"`
}

// LoyaltyStatus is the caller-facing view of a loyalty counter
type LoyaltyStatus struct {
	UserID              int64 `json:"user_id"`
	PaidSinceReward     int   `json:"paid_since_reward"`
	FreeClaimed         int   `json:"free_claimed"`
	Threshold           int   `json:"threshold"`
	Eligible            bool  `json:"eligible"`
	BookingsUntilReward int   `json:"bookings_until_reward"`
}
