package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/capd-api/internal/repository"
)

// Store implements repository.Store on PostgreSQL or MySQL. Queries are written
// with "?" placeholders and rebound for the connected driver.
type Store struct {
	db *sqlx.DB
	q  sqlx.ExtContext
	tx bool
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Patients() repository.PatientRepository {
	return &patientRepository{q: s.q}
}

func (s *Store) Prescriptions() repository.PrescriptionRepository {
	return &prescriptionRepository{q: s.q}
}

func (s *Store) PrescriptionMedicines() repository.PrescriptionMedicineRepository {
	return &prescriptionMedicineRepository{q: s.q}
}

func (s *Store) FillSessions() repository.FillSessionRepository {
	return &fillSessionRepository{q: s.q}
}

func (s *Store) DrainSessions() repository.DrainSessionRepository {
	return &drainSessionRepository{q: s.q}
}

func (s *Store) Treatments() repository.TreatmentRepository {
	return &treatmentRepository{q: s.q}
}

func (s *Store) DrainageCompletions() repository.DrainageCompletionRepository {
	return &drainageCompletionRepository{q: s.q}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{q: s.q}
}

// WithTx executes fn within a transaction. Calls made on a Store that is already
// transactional join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Store{db: s.db, q: tx, tx: true}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

// insert runs an INSERT and returns the generated key of idColumn.
func insert(ctx context.Context, q sqlx.ExtContext, query, idColumn string, args ...interface{}) (int64, error) {
	if sqlx.BindType(q.DriverName()) == sqlx.DOLLAR {
		var id int64
		err := q.QueryRowxContext(ctx, q.Rebind(query+" RETURNING "+idColumn), args...).Scan(&id)
		return id, err
	}

	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// execOne runs an UPDATE that must match a row.
func execOne(ctx context.Context, q sqlx.ExtContext, query string, args ...interface{}) error {
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func get(ctx context.Context, q sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

func selectAll(ctx context.Context, q sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

// wrap keeps ErrNotFound recognisable through the added context.
func wrap(err error, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
