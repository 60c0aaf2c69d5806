//go:build usgs

package usgs

import (
	"context"
	"testing"

	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the live USGS feed.
// Run with: go test -tags=usgs ./internal/adapter/usgs/ -v -count=1

func TestSmoke_FetchEarthquakes(t *testing.T) {
	c := NewClient(DefaultConnectTimeout, DefaultReadTimeout, observability.NewMetricsForTesting(), discardLogger())

	raw, err := BuildRequestURL(DefaultEndpoint, domain.Query{MinMagnitude: "5", OrderBy: domain.OrderByTime, Limit: 5})
	require.NoError(t, err)

	quakes, err := c.FetchEarthquakes(context.Background(), raw)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(quakes), 5)
	for _, q := range quakes {
		assert.GreaterOrEqual(t, q.Magnitude(), 5.0)
		assert.NotEmpty(t, q.Place())
		assert.Positive(t, q.TimeMillis())
	}
}

func TestSmoke_OrderByMagnitude(t *testing.T) {
	c := NewClient(DefaultConnectTimeout, DefaultReadTimeout, observability.NewMetricsForTesting(), discardLogger())

	raw, err := BuildRequestURL(DefaultEndpoint, domain.Query{MinMagnitude: "6", OrderBy: domain.OrderByMagnitude, Limit: 10})
	require.NoError(t, err)

	quakes, err := c.FetchEarthquakes(context.Background(), raw)
	require.NoError(t, err)
	for i := 1; i < len(quakes); i++ {
		assert.GreaterOrEqual(t, quakes[i-1].Magnitude(), quakes[i].Magnitude())
	}
}
