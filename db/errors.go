package db

import "errors"

// ErrNotFound normalizes sql.ErrNoRows so repository callers don't depend
// on database/sql.
var ErrNotFound = errors.New("not found")

func IgnoreErrNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
