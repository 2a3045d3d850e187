// Package repository provides tenant-scoped PostgreSQL access to the
// platform's metadata: documents, extraction results, linguistic artifacts,
// chunks, reasoning traces, and tenant configuration.
//
// Every repository is constructed with a tenant ID and includes it in every
// predicate, so cross-tenant reads are impossible to express through this
// package.
package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/waqedi/platform/pkg/faults"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classify maps a database error to the platform taxonomy. Constraint
// violations are conflicts; everything else is a retryable dependency
// failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return faults.Wrap(faults.KindNotFound, "NOT_FOUND", op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return faults.Wrap(faults.KindConflict, "DUPLICATE", op, err)
		case pgForeignKeyViolation:
			return faults.Wrap(faults.KindConflict, "MISSING_PARENT", op, err)
		}
	}
	return faults.Transientf("DATABASE_UNAVAILABLE", err, "%s", op)
}
