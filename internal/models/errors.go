package models

import "github.com/pkg/errors"

var (
	// ErrValidation marks malformed input: bad coupon definitions, negative
	// amounts. Business ineligibility is never reported through it.
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

func invalid(msg string) error {
	return errors.Wrap(ErrValidation, msg)
}

func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}
