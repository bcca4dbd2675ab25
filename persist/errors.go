package persist

import (
	"errors"
	"strings"

	"github.com/HerbHall/stratum/connect"
)

// Sentinel errors returned by persistence operations. ErrNotOpen aliases
// the connect sentinel so errors.Is matches across both layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotOpen       = connect.ErrNotOpen
)

// isConstraintViolation reports whether err is a SQLite constraint failure.
// The driver surfaces these as plain error strings.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
