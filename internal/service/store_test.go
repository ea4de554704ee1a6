package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "futsal/internal/errors"
	"futsal/internal/external"
	"futsal/internal/models"
)

// memStore is an in-memory stand-in for the Postgres repositories.
// Transactions are serialized and roll back by restoring a snapshot, so races between
// transactions are only exercised by the Postgres tests in postgres_test.go.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	venues   map[int64]models.Venue
	grounds  map[int64]models.Ground
	slots    map[int64]models.Slot
	bookings map[int64]models.Booking
	loyalty  map[int64]models.LoyaltyCounter
	intents  map[string]models.PaymentIntent
	users    map[int64]models.User

	nextBookingID int64
	bookingErr    error
}

type txMarker struct{}

func newMemStore() *memStore {
	return &memStore{
		venues:   make(map[int64]models.Venue),
		grounds:  make(map[int64]models.Ground),
		slots:    make(map[int64]models.Slot),
		bookings: make(map[int64]models.Booking),
		loyalty:  make(map[int64]models.LoyaltyCounter),
		intents:  make(map[string]models.PaymentIntent),
		users:    make(map[int64]models.User),
	}
}

type memSnapshot struct {
	slots         map[int64]models.Slot
	bookings      map[int64]models.Booking
	loyalty       map[int64]models.LoyaltyCounter
	intents       map[string]models.PaymentIntent
	users         map[int64]models.User
	nextBookingID int64
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		slots:         copyMap(s.slots),
		bookings:      copyMap(s.bookings),
		loyalty:       copyMap(s.loyalty),
		intents:       copyMap(s.intents),
		users:         copyMap(s.users),
		nextBookingID: s.nextBookingID,
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = snap.slots
	s.bookings = snap.bookings
	s.loyalty = snap.loyalty
	s.intents = snap.intents
	s.users = snap.users
	s.nextBookingID = snap.nextBookingID
}

// Do implements Transactor
func (s *memStore) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// seed helpers

func (s *memStore) addVenue(v models.Venue) {
	s.venues[v.ID] = v
}

func (s *memStore) addGround(g models.Ground) {
	s.grounds[g.ID] = g
}

func (s *memStore) addSlot(sl models.Slot) {
	if sl.EndHour == 0 {
		sl.EndHour = sl.StartHour + 1
	}
	s.slots[sl.ID] = sl
}

func (s *memStore) addUser(u models.User) {
	s.users[u.ID] = u
}

func (s *memStore) setPaidCount(userID int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.loyalty[userID]
	c.UserID = userID
	c.PaidSinceReward = n
	s.loyalty[userID] = c
}

func (s *memStore) slot(id int64) models.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[id]
}

func (s *memStore) counter(userID int64) models.LoyaltyCounter {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.loyalty[userID]
	c.UserID = userID
	return c
}

func (s *memStore) intentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.intents)
}

func (s *memStore) allBookings() []models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) liveBookingsForSlot(slotID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.SlotID == slotID && b.IsLive() {
			n++
		}
	}
	return n
}

// slot repository

type memSlots struct{ s *memStore }

func (r memSlots) ListAvailable(_ context.Context, groundID int64, date time.Time) ([]models.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Slot
	day := date.Format(models.DateLayout)
	for _, sl := range r.s.slots {
		if sl.GroundID == groundID && !sl.IsBooked && sl.Date.Format(models.DateLayout) == day {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartHour < out[j].StartHour })
	return out, nil
}

func (r memSlots) GetByIDs(_ context.Context, ids []int64) ([]models.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Slot
	for _, id := range ids {
		if sl, ok := r.s.slots[id]; ok {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memSlots) LockByIDs(ctx context.Context, ids []int64) ([]models.Slot, error) {
	if ctx.Value(txMarker{}) == nil {
		return nil, fmt.Errorf("lock outside transaction")
	}
	return r.GetByIDs(ctx, ids)
}

func (r memSlots) MarkBooked(_ context.Context, ids []int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		sl, ok := r.s.slots[id]
		if !ok || sl.IsBooked {
			continue
		}
		sl.IsBooked = true
		r.s.slots[id] = sl
		n++
	}
	return n, nil
}

func (r memSlots) MarkFree(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sl, ok := r.s.slots[id]; ok {
		sl.IsBooked = false
		r.s.slots[id] = sl
	}
	return nil
}

func (r memSlots) VenueIDForSlot(_ context.Context, slotID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sl, ok := r.s.slots[slotID]
	if !ok {
		return 0, fmt.Errorf("slot %d: %w", slotID, apperrors.ErrNotFound)
	}
	return r.s.grounds[sl.GroundID].VenueID, nil
}

// ground and venue repositories

type memGrounds struct{ s *memStore }

func (r memGrounds) GetByID(_ context.Context, id int64) (*models.Ground, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.grounds[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r memGrounds) ListByVenue(_ context.Context, venueID int64) ([]models.Ground, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Ground
	for _, g := range r.s.grounds {
		if g.VenueID == venueID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memVenues struct{ s *memStore }

func (r memVenues) GetByID(_ context.Context, id int64) (*models.Venue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.venues[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r memVenues) Search(_ context.Context, query string, limit int) ([]models.Venue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Venue
	q := strings.ToLower(query)
	for _, v := range r.s.venues {
		if v.IsActive && strings.Contains(strings.ToLower(v.Name+" "+v.Location), q) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// booking repository

type memBookings struct{ s *memStore }

func (r memBookings) Create(_ context.Context, b *models.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.bookingErr != nil {
		return r.s.bookingErr
	}

	sl, ok := r.s.slots[b.SlotID]
	if !ok || !sl.IsBooked {
		return fmt.Errorf("slot %d is not claimed: %w", b.SlotID, apperrors.ErrInvalidState)
	}
	for _, existing := range r.s.bookings {
		if existing.SlotID == b.SlotID && existing.IsLive() {
			return fmt.Errorf("slot %d already has a live booking: %w", b.SlotID, apperrors.ErrInvalidState)
		}
	}

	r.s.nextBookingID++
	b.ID = r.s.nextBookingID
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	r.s.bookings[b.ID] = *b
	return nil
}

func (r memBookings) GetByID(_ context.Context, id int64) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r memBookings) GetByIDForUpdate(ctx context.Context, id int64) (*models.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r memBookings) ListByUser(_ context.Context, userID int64) ([]models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Booking
	for _, b := range r.s.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memBookings) ListByIntent(_ context.Context, reference string) ([]models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Booking
	for _, b := range r.s.bookings {
		if b.IntentReference != nil && *b.IntentReference == reference {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotID < out[j].SlotID })
	return out, nil
}

func (r memBookings) UpdateStatus(_ context.Context, id int64, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return fmt.Errorf("booking %d: %w", id, apperrors.ErrNotFound)
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	r.s.bookings[id] = b
	return nil
}

// loyalty repository

type memLoyalty struct{ s *memStore }

func (r memLoyalty) Get(_ context.Context, userID int64) (*models.LoyaltyCounter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.loyalty[userID]
	c.UserID = userID
	return &c, nil
}

func (r memLoyalty) LockForUpdate(ctx context.Context, userID int64) (*models.LoyaltyCounter, error) {
	if ctx.Value(txMarker{}) == nil {
		return nil, fmt.Errorf("lock outside transaction")
	}
	return r.Get(ctx, userID)
}

func (r memLoyalty) IncrementPaid(_ context.Context, userID int64) (*models.LoyaltyCounter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.loyalty[userID]
	c.UserID = userID
	c.PaidSinceReward++
	c.UpdatedAt = time.Now()
	r.s.loyalty[userID] = c
	return &c, nil
}

func (r memLoyalty) ConsumeReward(_ context.Context, userID int64, threshold int) (*models.LoyaltyCounter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.loyalty[userID]
	if c.PaidSinceReward < threshold {
		return nil, fmt.Errorf("user %d below threshold: %w", userID, apperrors.ErrInvalidState)
	}
	c.UserID = userID
	c.PaidSinceReward = 0
	c.FreeClaimed++
	c.UpdatedAt = time.Now()
	r.s.loyalty[userID] = c
	return &c, nil
}

// intent repository

type memIntents struct{ s *memStore }

func (r memIntents) Create(_ context.Context, intent *models.PaymentIntent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.intents[intent.Reference]; ok {
		return fmt.Errorf("intent %s exists", intent.Reference)
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now()
	}
	r.s.intents[intent.Reference] = *intent
	return nil
}

func (r memIntents) GetByReference(_ context.Context, reference string) (*models.PaymentIntent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	intent, ok := r.s.intents[reference]
	if !ok {
		return nil, nil
	}
	return &intent, nil
}

func (r memIntents) GetByReferenceForUpdate(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	return r.GetByReference(ctx, reference)
}

func (r memIntents) SetPaymentIndex(_ context.Context, reference, paymentIndex string, expiresAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	intent, ok := r.s.intents[reference]
	if !ok {
		return false, nil
	}
	intent.PaymentIndex = &paymentIndex
	intent.ExpiresAt = &expiresAt
	r.s.intents[reference] = intent
	return true, nil
}

func (r memIntents) MarkChecked(_ context.Context, reference string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	intent, ok := r.s.intents[reference]
	if !ok {
		return nil
	}
	now := time.Now()
	intent.CheckedAt = &now
	r.s.intents[reference] = intent
	return nil
}

func (r memIntents) Delete(_ context.Context, reference string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.intents[reference]; !ok {
		return false, nil
	}
	delete(r.s.intents, reference)
	return true, nil
}

func (r memIntents) ListCreatedBefore(_ context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.PaymentIntent
	for _, intent := range r.s.intents {
		if intent.CreatedAt.Before(cutoff) {
			out = append(out, intent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return sweepOrder(out[i]).Before(sweepOrder(out[j])) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sweepOrder(intent models.PaymentIntent) time.Time {
	if intent.CheckedAt != nil {
		return *intent.CheckedAt
	}
	return intent.CreatedAt
}

// expireLink moves the payment link expiry of an intent into the past
func (s *memStore) expireLink(reference string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent := s.intents[reference]
	past := time.Now().Add(-time.Minute)
	intent.ExpiresAt = &past
	s.intents[reference] = intent
}

func (s *memStore) intent(reference string) (models.PaymentIntent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[reference]
	return intent, ok
}

// ageIntent moves an intent's creation time into the past
func (s *memStore) ageIntent(reference string, age time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent := s.intents[reference]
	intent.CreatedAt = time.Now().Add(-age)
	s.intents[reference] = intent
}

// user repository

type memUsers struct{ s *memStore }

func (r memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// fakeGateway records sessions and answers lookups from them
type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	sessions  map[string]*external.PaymentLookup
	requests  []external.PaymentSessionRequest
	createErr error
	lookupErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]*external.PaymentLookup)}
}

func (g *fakeGateway) CreatePaymentSession(_ context.Context, req external.PaymentSessionRequest) (*external.PaymentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	pidx := fmt.Sprintf("pidx-%d", g.seq)
	g.requests = append(g.requests, req)
	g.sessions[pidx] = &external.PaymentLookup{
		PaymentIndex: pidx,
		Status:       external.PaymentPending,
		RawStatus:    "Initiated",
	}
	return &external.PaymentSession{
		PaymentIndex: pidx,
		PaymentURL:   "https://pay.example.com/?pidx=" + pidx,
		ExpiresAt:    time.Now().Add(DefaultPaymentLinkLifetime),
	}, nil
}

func (g *fakeGateway) LookupPayment(_ context.Context, pidx string) (*external.PaymentLookup, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lookupErr != nil {
		return nil, g.lookupErr
	}
	lookup, ok := g.sessions[pidx]
	if !ok {
		return &external.PaymentLookup{PaymentIndex: pidx, Status: external.PaymentFailed, RawStatus: "Not found"}, nil
	}
	out := *lookup
	return &out, nil
}

func (g *fakeGateway) settle(pidx string, status external.PaymentStatus, raw string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[pidx] = &external.PaymentLookup{
		PaymentIndex:  pidx,
		Status:        status,
		RawStatus:     raw,
		TransactionID: "txn-" + pidx,
		TotalAmount:   amount,
	}
}

// fakePublisher keeps published subjects in order
type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	events   []interface{}
}

func (p *fakePublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, data)
	return nil
}

func (p *fakePublisher) published(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

func (p *fakePublisher) last(subject string) interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.subjects) - 1; i >= 0; i-- {
		if p.subjects[i] == subject {
			return p.events[i]
		}
	}
	return nil
}

// fakeCache counts invalidations
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string][]models.Slot
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]models.Slot)}
}

func cacheKey(groundID int64, date time.Time) string {
	return fmt.Sprintf("%d:%s", groundID, date.Format(models.DateLayout))
}

func (c *fakeCache) GetAvailableSlots(_ context.Context, groundID int64, date time.Time) ([]models.Slot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slots, ok := c.entries[cacheKey(groundID, date)]
	return slots, ok, nil
}

func (c *fakeCache) SetAvailableSlots(_ context.Context, groundID int64, date time.Time, slots []models.Slot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(groundID, date)] = slots
	return nil
}

func (c *fakeCache) InvalidateAvailability(_ context.Context, groundID int64, date time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(groundID, date))
	c.invalidated++
	return nil
}

const (
	testVenueID      = int64(1)
	testGroundID     = int64(1)
	closedGroundID   = int64(2)
	otherGroundID    = int64(3)
	testPricePerHour = int64(1000)

	playerID   = int64(10)
	rivalID    = int64(11)
	ownerID    = int64(20)
	strangerID = int64(21)
	adminID    = int64(30)
)

var testDate = time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	store     *memStore
	gateway   *fakeGateway
	publisher *fakePublisher
	cache     *fakeCache
	svc       *Services
}

// newTestEnv seeds one venue with an open ground holding slots 1-5 (06:00-11:00),
// a closed ground with slot 6 and a second open ground with slot 7
func newTestEnv() *testEnv {
	store := newMemStore()
	store.addVenue(models.Venue{ID: testVenueID, Name: "Kathmandu Futsal Arena", Location: "Baneshwor", IsActive: true})
	store.addVenue(models.Venue{ID: 2, Name: "Lalitpur Kickers", Location: "Jhamsikhel", IsActive: true})
	store.addGround(models.Ground{ID: testGroundID, VenueID: testVenueID, Name: "Pitch A", PricePerHour: testPricePerHour, IsAvailable: true})
	store.addGround(models.Ground{ID: closedGroundID, VenueID: testVenueID, Name: "Pitch B", PricePerHour: testPricePerHour, IsAvailable: false})
	store.addGround(models.Ground{ID: otherGroundID, VenueID: 2, Name: "Main", PricePerHour: 1500, IsAvailable: true})
	for i := int64(1); i <= 5; i++ {
		store.addSlot(models.Slot{ID: i, GroundID: testGroundID, Date: testDate, StartHour: 5 + int(i)})
	}
	store.addSlot(models.Slot{ID: 6, GroundID: closedGroundID, Date: testDate, StartHour: 6})
	store.addSlot(models.Slot{ID: 7, GroundID: otherGroundID, Date: testDate, StartHour: 6})

	venue := testVenueID
	store.addUser(models.User{ID: playerID, Email: "player@example.com", FullName: "Player One", Role: models.RoleUser, IsActive: true})
	store.addUser(models.User{ID: rivalID, Email: "rival@example.com", FullName: "Rival", Role: models.RoleUser, IsActive: true})
	store.addUser(models.User{ID: ownerID, Email: "owner@example.com", Role: models.RoleOwner, VenueID: &venue, IsActive: true})
	store.addUser(models.User{ID: strangerID, Email: "stranger@example.com", Role: models.RoleOwner, IsActive: true})
	store.addUser(models.User{ID: adminID, Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true})

	env := &testEnv{
		store:     store,
		gateway:   newFakeGateway(),
		publisher: &fakePublisher{},
		cache:     newFakeCache(),
	}
	env.svc = NewServices(Dependencies{
		Tx:        store,
		Publisher: env.publisher,
		Gateway:   env.gateway,
		Cache:     env.cache,

		Venues:   memVenues{store},
		Grounds:  memGrounds{store},
		Slots:    memSlots{store},
		Bookings: memBookings{store},
		Loyalty:  memLoyalty{store},
		Intents:  memIntents{store},
		Users:    memUsers{store},

		LoyaltyThreshold: DefaultLoyaltyThreshold,
	})
	return env
}

func playerActor() models.Actor {
	return models.Actor{UserID: playerID, Role: models.RoleUser}
}

func ownerActor() models.Actor {
	venue := testVenueID
	return models.Actor{UserID: ownerID, Role: models.RoleOwner, VenueID: &venue}
}
