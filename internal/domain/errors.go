package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a fetch produced no events.
type ErrorKind int

const (
	KindInvalidURL ErrorKind = iota + 1
	KindNetwork
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a *FetchError of the same kind.
var (
	ErrInvalidURL = errors.New("invalid request url")
	ErrNetwork    = errors.New("network error")
	ErrParse      = errors.New("parse error")
)

// FetchError is the only error type returned by the fetch-and-parse pipeline.
type FetchError struct {
	Kind ErrorKind
	Err  error
}

// NewFetchError wraps err with the given kind.
func NewFetchError(kind ErrorKind, err error) *FetchError {
	return &FetchError{Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return e.Kind.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind.sentinel(), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for this error's kind.
func (e *FetchError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidURL:
		return ErrInvalidURL
	case KindNetwork:
		return ErrNetwork
	case KindParse:
		return ErrParse
	default:
		return errors.New("fetch error")
	}
}

// FetchErrorKind extracts the kind from err, or 0 if err is not a *FetchError.
func FetchErrorKind(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
