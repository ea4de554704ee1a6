package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createVenuesTable,
		createUsersTable,
		createGroundsTable,
		createSlotsTable,
		createBookingsTable,
		createBookingsLiveSlotIndex,
		createBookingsUserIndex,
		createLoyaltyCountersTable,
		createPaymentIntentsTable,
		createPaymentIntentsCreatedIndex,
		addPaymentIntentsExpiry,
		createPaymentIntentsSweepIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createVenuesTable = `
CREATE TABLE IF NOT EXISTS venues (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    location VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    contact VARCHAR(100) NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);`

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(64) NOT NULL,
    full_name VARCHAR(200) NOT NULL DEFAULT '',
    role VARCHAR(10) NOT NULL DEFAULT 'USER',
    venue_id BIGINT REFERENCES venues(id) ON DELETE SET NULL,
    matches_played INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    registered_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (role IN ('USER', 'OWNER', 'ADMIN'))
);`

const createGroundsTable = `
CREATE TABLE IF NOT EXISTS grounds (
    id BIGSERIAL PRIMARY KEY,
    venue_id BIGINT NOT NULL REFERENCES venues(id) ON DELETE CASCADE,
    name VARCHAR(100) NOT NULL,
    price_per_hour BIGINT NOT NULL,
    is_available BOOLEAN NOT NULL DEFAULT TRUE,

    CHECK (price_per_hour > 0)
);`

const createSlotsTable = `
CREATE TABLE IF NOT EXISTS slots (
    id BIGSERIAL PRIMARY KEY,
    ground_id BIGINT NOT NULL REFERENCES grounds(id) ON DELETE CASCADE,
    slot_date DATE NOT NULL,
    start_hour SMALLINT NOT NULL,
    end_hour SMALLINT NOT NULL,
    is_booked BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    UNIQUE(ground_id, slot_date, start_hour),
    CHECK (start_hour >= 0 AND start_hour < end_hour AND end_hour <= 24)
);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    team_id BIGINT,
    slot_id BIGINT NOT NULL REFERENCES slots(id),
    intent_reference VARCHAR(64),
    status VARCHAR(20) NOT NULL DEFAULT 'CONFIRMED',
    payment_status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    amount_paid BIGINT NOT NULL DEFAULT 0,
    is_free BOOLEAN NOT NULL DEFAULT FALSE,
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    UNIQUE(intent_reference, slot_id),
    CHECK (status IN ('CONFIRMED', 'WAITLISTED', 'CANCELLED', 'COMPLETED')),
    CHECK (payment_status IN ('PAID', 'PENDING', 'DOWN_PAYMENT')),
    CHECK (amount_paid >= 0)
);`

// A slot backs at most one live booking
const createBookingsLiveSlotIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS bookings_live_slot_idx
ON bookings (slot_id) WHERE status IN ('CONFIRMED', 'COMPLETED');`

const createBookingsUserIndex = `
CREATE INDEX IF NOT EXISTS bookings_user_id_idx ON bookings (user_id, created_at DESC);`

const createLoyaltyCountersTable = `
CREATE TABLE IF NOT EXISTS loyalty_counters (
    user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    paid_since_reward INTEGER NOT NULL DEFAULT 0,
    free_claimed INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (paid_since_reward >= 0)
);`

const createPaymentIntentsTable = `
CREATE TABLE IF NOT EXISTS payment_intents (
    reference VARCHAR(64) PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    ground_id BIGINT NOT NULL REFERENCES grounds(id),
    slot_ids BIGINT[] NOT NULL,
    team_id BIGINT,
    amount BIGINT NOT NULL,
    payment_index VARCHAR(128),
    expires_at TIMESTAMPTZ,
    checked_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (amount > 0),
    CHECK (cardinality(slot_ids) > 0)
);`

const createPaymentIntentsCreatedIndex = `
CREATE INDEX IF NOT EXISTS payment_intents_created_at_idx ON payment_intents (created_at);`

const addPaymentIntentsExpiry = `
ALTER TABLE payment_intents
    ADD COLUMN IF NOT EXISTS expires_at TIMESTAMPTZ,
    ADD COLUMN IF NOT EXISTS checked_at TIMESTAMP;`

// The sweep visits intents it has looked at least recently first
const createPaymentIntentsSweepIndex = `
CREATE INDEX IF NOT EXISTS payment_intents_sweep_idx ON payment_intents ((COALESCE(checked_at, created_at)));`
