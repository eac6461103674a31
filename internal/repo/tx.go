package repo

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// txRetries bounds how often a transaction is replayed after SQLITE_BUSY.
const txRetries = 4

// Transaction runs fn in a transaction, replaying it with exponential
// backoff (25ms, 50ms, 100ms, ...) when SQLite reports the database as
// locked. Other errors are returned unchanged.
func Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0.2

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := db.WithContext(ctx).Transaction(fn)
		if err != nil && !IsBusy(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(txRetries+1))

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// forUpdate adds a row lock on engines that support it.
func forUpdate(db *gorm.DB) *gorm.DB {
	if isSQLite(db) {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// skipLocked adds FOR UPDATE SKIP LOCKED on engines that support it.
func skipLocked(db *gorm.DB) *gorm.DB {
	if isSQLite(db) {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
}
