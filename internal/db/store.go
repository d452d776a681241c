package db

import (
	"context"
	"database/sql"
)

// querier is satisfied by both *DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store bundles every repository over one querier so a unit of work can run
// all of them inside the same transaction.
type Store struct {
	db *DB

	Regions       *RegionRepository
	Buildings     *BuildingRepository
	Users         *UserRepository
	Signers       *SignerRepository
	Requests      *RentalRequestRepository
	Approvals     *ApprovalRepository
	Contracts     *ContractRepository
	Notifications *NotificationRepository
	Events        *EventRepository
}

// NewStore creates a Store bound to the connection pool.
func NewStore(db *DB) *Store {
	return newStore(db, db)
}

func newStore(db *DB, q querier) *Store {
	return &Store{
		db:            db,
		Regions:       &RegionRepository{q: q},
		Buildings:     &BuildingRepository{q: q},
		Users:         &UserRepository{q: q},
		Signers:       &SignerRepository{q: q},
		Requests:      &RentalRequestRepository{q: q},
		Approvals:     &ApprovalRepository{q: q},
		Contracts:     &ContractRepository{q: q},
		Notifications: &NotificationRepository{q: q},
		Events:        &EventRepository{q: q},
	}
}

// WithTx returns a Store whose repositories run on tx.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return newStore(s.db, tx)
}

// DB returns the underlying database.
func (s *Store) DB() *DB {
	return s.db
}

// InTx runs fn in a retried transaction with a transaction-bound Store.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		return fn(s.WithTx(tx))
	})
}
