package history

import (
	"errors"
	"fmt"
)

// ErrHistoryUnavailable reports that the version-control history could not be
// read: not a repository, git missing or failing, or an unknown commit.
var ErrHistoryUnavailable = errors.New("history unavailable")

// Error describes a failed history operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, ErrHistoryUnavailable)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrHistoryUnavailable}
	}
	return []error{ErrHistoryUnavailable, e.Err}
}

// IsUnavailable reports whether err originates from a history source.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrHistoryUnavailable)
}

func unavailable(op string, err error) error {
	return &Error{Op: op, Err: err}
}
