package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound covers both absent records and records owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks caller mistakes; the wrapping message says which.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned for bad credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// notFound collapses gorm's not-found into ErrNotFound and leaves other errors alone.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
