// Package repository holds the MySQL-backed stores for accounts and reset
// codes.  Higher layers match the sentinel errors below with errors.Is
// instead of inspecting driver errors.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when no row matches the lookup.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique key.
// It is the authoritative uniqueness guard; existence checks done before
// an insert are only a fast path.
var ErrDuplicate = errors.New("duplicate key")

// ErrNoCredential is returned by AccountRepo.Create for an account with
// neither a password hash nor an external provider id.
var ErrNoCredential = errors.New("account has no sign-in credential")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
