package gorm

import (
	"errors"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"

	"github.com/fleetguard/fleetguard/pkg/store"
)

// SQLSTATE raised by the audit_log_entries trigger
const immutableRecordSQLState = "FG001"

const uniqueViolationSQLState = "23505"

// translate maps gorm and PostgreSQL errors onto store sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case immutableRecordSQLState:
			return store.ErrImmutableRecord
		case uniqueViolationSQLState:
			return store.ErrAlreadyExists
		}
	}
	return store.Failure(err)
}
