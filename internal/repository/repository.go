package repository

import (
	"futsal/internal/database"
)

type Repositories struct {
	Venues   *VenueRepository
	Grounds  *GroundRepository
	Slots    *SlotRepository
	Bookings *BookingRepository
	Loyalty  *LoyaltyRepository
	Intents  *IntentRepository
	Users    *UserRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Venues:   NewVenueRepository(db),
		Grounds:  NewGroundRepository(db),
		Slots:    NewSlotRepository(db),
		Bookings: NewBookingRepository(db),
		Loyalty:  NewLoyaltyRepository(db),
		Intents:  NewIntentRepository(db),
		Users:    NewUserRepository(db),
	}
}
