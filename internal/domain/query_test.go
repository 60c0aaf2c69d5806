package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderBy(t *testing.T) {
	o, err := ParseOrderBy("time")
	require.NoError(t, err)
	assert.Equal(t, OrderByTime, o)

	o, err = ParseOrderBy(" Magnitude ")
	require.NoError(t, err)
	assert.Equal(t, OrderByMagnitude, o)

	_, err = ParseOrderBy("depth")
	require.Error(t, err)
}

func TestQuery_Validate(t *testing.T) {
	require.NoError(t, DefaultQuery().Validate())

	tests := []struct {
		name  string
		query Query
	}{
		{"bad magnitude", Query{MinMagnitude: "six", OrderBy: OrderByTime, Limit: 10}},
		{"empty magnitude", Query{MinMagnitude: "", OrderBy: OrderByTime, Limit: 10}},
		{"bad order", Query{MinMagnitude: "4.5", OrderBy: "depth", Limit: 10}},
		{"zero limit", Query{MinMagnitude: "4.5", OrderBy: OrderByMagnitude, Limit: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.query.Validate())
		})
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, MinLimit, ClampLimit(0))
	assert.Equal(t, MinLimit, ClampLimit(-3))
	assert.Equal(t, 42, ClampLimit(42))
	assert.Equal(t, MaxLimit, ClampLimit(500))
}

func TestFetchError_Is(t *testing.T) {
	err := fmt.Errorf("load: %w", NewFetchError(KindParse, errors.New("unexpected EOF")))

	assert.ErrorIs(t, err, ErrParse)
	assert.NotErrorIs(t, err, ErrNetwork)
	assert.Equal(t, KindParse, FetchErrorKind(err))
	assert.Equal(t, ErrorKind(0), FetchErrorKind(errors.New("plain")))
	assert.Contains(t, err.Error(), "parse error: unexpected EOF")
	assert.Equal(t, "network", KindNetwork.String())
}
