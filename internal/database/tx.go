package database

import (
	"context"
	"errors"
	"log/slog"
	"time"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	trmanager "github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/lib/pq"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// TxManager runs functions inside a single Postgres transaction. Repositories join it through DB.Conn.
type TxManager struct {
	manager  *trmanager.Manager
	attempts int
}

func NewTxManager(db *DB, attempts int) *TxManager {
	if attempts < 1 {
		attempts = 1
	}
	return &TxManager{
		manager:  trmanager.Must(trmsqlx.NewDefaultFactory(db.DB)),
		attempts: attempts,
	}
}

// Do runs fn in a transaction. A nested call joins the outer transaction.
// The outermost call is retried on serialization failures and deadlocks.
func (m *TxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if trmsqlx.DefaultCtxGetter.DefaultTrOrDB(ctx, nil) != nil {
		return m.manager.Do(ctx, fn)
	}

	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		err := m.manager.Do(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsTxConflict(err) {
			return err
		}

		lastErr = err
		if attempt < m.attempts {
			slog.Warn("Transaction conflict, retrying",
				"attempt", attempt, "max_attempts", m.attempts, "error", err)
			time.Sleep(time.Duration(attempt) * 20 * time.Millisecond)
		}
	}
	return lastErr
}

// IsTxConflict reports serialization failures and deadlocks
func IsTxConflict(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports a unique constraint violation
func IsUniqueViolation(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
