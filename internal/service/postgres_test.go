package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futsal/internal/database"
	apperrors "futsal/internal/errors"
	"futsal/internal/models"
	"futsal/internal/repository"
)

// pgEnv runs the services against a real database, so row locks decide the races
type pgEnv struct {
	repos    *repository.Repositories
	tx       *database.TxManager
	svc      *Services
	groundID int64
	slotIDs  []int64
}

func newPgEnv(t *testing.T) *pgEnv {
	t.Helper()
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}

	db, err := database.ConnectURL(url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations())

	ctx := context.Background()
	env := &pgEnv{
		repos: repository.NewRepositories(db),
		tx:    database.NewTxManager(db, 3),
	}

	var venueID int64
	require.NoError(t, db.QueryRowxContext(ctx,
		`INSERT INTO venues (name, location) VALUES ($1, 'Kathmandu') RETURNING id`,
		"Arena "+uuid.NewString()).Scan(&venueID))
	require.NoError(t, db.QueryRowxContext(ctx,
		`INSERT INTO grounds (venue_id, name, price_per_hour) VALUES ($1, 'Main', 1000) RETURNING id`,
		venueID).Scan(&env.groundID))

	date := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	_, err = env.repos.Slots.Generate(ctx, env.groundID, date, []int64{6, 7})
	require.NoError(t, err)
	slots, err := env.repos.Slots.ListAvailable(ctx, env.groundID, date)
	require.NoError(t, err)
	for _, s := range slots {
		env.slotIDs = append(env.slotIDs, s.ID)
	}
	require.Len(t, env.slotIDs, 2)

	env.svc = NewServices(Dependencies{
		Tx:        env.tx,
		Publisher: &fakePublisher{},
		Gateway:   newFakeGateway(),
		Cache:     newFakeCache(),

		Venues:   env.repos.Venues,
		Grounds:  env.repos.Grounds,
		Slots:    env.repos.Slots,
		Bookings: env.repos.Bookings,
		Loyalty:  env.repos.Loyalty,
		Intents:  env.repos.Intents,
		Users:    env.repos.Users,

		LoyaltyThreshold: DefaultLoyaltyThreshold,
	})
	return env
}

// eligibleUser creates a user with a free booking due
func (e *pgEnv) eligibleUser(t *testing.T) int64 {
	t.Helper()
	ctx := context.Background()
	user := &models.User{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Role:         models.RoleUser,
		IsActive:     true,
	}
	require.NoError(t, e.repos.Users.Create(ctx, user))
	for i := 0; i < DefaultLoyaltyThreshold; i++ {
		_, err := e.repos.Loyalty.IncrementPaid(ctx, user.ID)
		require.NoError(t, err)
	}
	return user.ID
}

func TestPostgresSlotClaimRace(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	slotID := env.slotIDs[0]

	const workers = 12
	errs := make([]error, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = env.tx.Do(ctx, func(ctx context.Context) error {
				_, err := env.svc.Slots.Claim(ctx, []int64{slotID})
				return err
			})
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrSlotUnavailable)
	}
	assert.Equal(t, 1, wins)

	slots, err := env.repos.Slots.GetByIDs(ctx, []int64{slotID})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].IsBooked)
}

func TestPostgresFreeBookingRace(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	slotID := env.slotIDs[0]
	users := []int64{env.eligibleUser(t), env.eligibleUser(t)}

	bookings := make([]*models.Booking, len(users))
	errs := make([]error, len(users))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, userID := range users {
		wg.Add(1)
		go func(i int, userID int64) {
			defer wg.Done()
			<-start
			bookings[i], errs[i] = env.svc.Reservations.InitiateFreeBooking(ctx, models.ReserveRequest{
				UserID:   userID,
				GroundID: env.groundID,
				SlotIDs:  []int64{slotID},
			})
		}(i, userID)
	}
	close(start)
	wg.Wait()

	winner, loser := 0, 1
	if errs[0] != nil {
		winner, loser = 1, 0
	}
	require.NoError(t, errs[winner])
	require.NotNil(t, bookings[winner])
	assert.True(t, bookings[winner].IsFree)
	assert.ErrorIs(t, errs[loser], apperrors.ErrSlotUnavailable)

	won, err := env.repos.Loyalty.Get(ctx, users[winner])
	require.NoError(t, err)
	assert.Equal(t, 0, won.PaidSinceReward)
	assert.Equal(t, 1, won.FreeClaimed)

	lost, err := env.repos.Loyalty.Get(ctx, users[loser])
	require.NoError(t, err)
	assert.Equal(t, DefaultLoyaltyThreshold, lost.PaidSinceReward, "the loser keeps the reward")
	assert.Equal(t, 0, lost.FreeClaimed)

	mine, err := env.repos.Bookings.ListByUser(ctx, users[loser])
	require.NoError(t, err)
	assert.Empty(t, mine)
}
