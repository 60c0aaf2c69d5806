package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// OrderBy is the feed ordering key.
type OrderBy string

const (
	OrderByTime      OrderBy = "time"
	OrderByMagnitude OrderBy = "magnitude"
)

// ParseOrderBy accepts "time" or "magnitude", case-insensitively.
func ParseOrderBy(s string) (OrderBy, error) {
	switch OrderBy(strings.ToLower(strings.TrimSpace(s))) {
	case OrderByTime:
		return OrderByTime, nil
	case OrderByMagnitude:
		return OrderByMagnitude, nil
	default:
		return "", fmt.Errorf("unknown order key %q", s)
	}
}

// Result-count bounds offered to users; the feed itself accepts more.
const (
	MinLimit = 5
	MaxLimit = 100
)

// Defaults used when no settings have been persisted yet.
const (
	DefaultMinMagnitude = "6"
	DefaultOrderBy      = OrderByTime
	DefaultLimit        = 10
)

// Query holds the user-selected feed parameters for one load cycle.
type Query struct {
	MinMagnitude string
	OrderBy      OrderBy
	Limit        int
}

// DefaultQuery returns the query used before any settings exist.
func DefaultQuery() Query {
	return Query{
		MinMagnitude: DefaultMinMagnitude,
		OrderBy:      DefaultOrderBy,
		Limit:        DefaultLimit,
	}
}

// Validate checks that the query can be turned into a request.
func (q Query) Validate() error {
	if _, err := strconv.ParseFloat(strings.TrimSpace(q.MinMagnitude), 64); err != nil {
		return fmt.Errorf("min magnitude %q is not a decimal number", q.MinMagnitude)
	}
	if _, err := ParseOrderBy(string(q.OrderBy)); err != nil {
		return err
	}
	if q.Limit <= 0 {
		return errors.New("limit must be positive")
	}
	return nil
}

// ClampLimit keeps n within [MinLimit, MaxLimit].
func ClampLimit(n int) int {
	switch {
	case n < MinLimit:
		return MinLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}
