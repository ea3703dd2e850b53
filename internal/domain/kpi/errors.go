package kpi

import (
	"errors"
	"strconv"
)

var (
	ErrUnknownOperator = errors.New("unknown operator")
	ErrMalformedRule   = errors.New("malformed condition")
	ErrConfigInvalid   = errors.New("configuration invalid")
	ErrBatchEmpty      = errors.New("batch has no rows")
	ErrInvalidPeriod   = errors.New("invalid period")
	ErrNotFound        = errors.New("not found")
	ErrResolverFailed  = errors.New("identity resolution failed")
	ErrNoWarningLetter = errors.New("result has no warning letter trigger")
)

// RowError reports a single upload row that could not be normalized.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return "row " + strconv.Itoa(e.Row) + ": " + e.Reason
}

// ValidationError carries the blocking configuration warnings that caused
// an update to be rejected.
type ValidationError struct {
	Warnings []ConfigWarning
}

func (e *ValidationError) Error() string {
	if len(e.Warnings) == 0 {
		return ErrConfigInvalid.Error()
	}
	return ErrConfigInvalid.Error() + ": " + e.Warnings[0].Message
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}
