// Package repository contains raw-SQL data access for the workflow engine.
// Methods accept an optional *sql.Tx so services can compose invariant checks
// and writes into one transaction; passing nil runs against the pool.
package repository

import (
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

// executor is the subset of database/sql shared by *sql.DB and *sql.Tx.
type executor interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func pick(db *sql.DB, tx *sql.Tx) executor {
	if tx != nil {
		return tx
	}
	return db
}

// isUniqueViolation reports whether err is a SQLite uniqueness constraint
// failure, used to map partial-index violations to domain conflicts.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}
