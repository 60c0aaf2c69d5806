package usgs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchcryptid/quake-report/internal/domain"
)

// USGS GeoJSON response types. Pointers distinguish absent or null fields
// from zero values.

type featureCollection struct {
	Features *[]feature `json:"features"`
}

type feature struct {
	Properties *properties `json:"properties"`
}

type properties struct {
	Mag   *float64     `json:"mag"`
	Place *string      `json:"place"`
	Time  *json.Number `json:"time"`
	URL   *string      `json:"url"`
}

// ParseFeed converts a GeoJSON FeatureCollection body into earthquakes in
// feed order. A malformed payload or any feature missing mag, place or
// time yields a parse *domain.FetchError and no earthquakes.
func ParseFeed(body []byte) ([]domain.Earthquake, error) {
	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, domain.NewFetchError(domain.KindParse, fmt.Errorf("decode feed: %w", err))
	}
	if fc.Features == nil {
		return nil, domain.NewFetchError(domain.KindParse, errors.New("decode feed: missing features array"))
	}

	quakes := make([]domain.Earthquake, 0, len(*fc.Features))
	for i, f := range *fc.Features {
		eq, err := f.toEarthquake()
		if err != nil {
			return nil, domain.NewFetchError(domain.KindParse, fmt.Errorf("feature %d: %w", i, err))
		}
		quakes = append(quakes, eq)
	}
	return quakes, nil
}

func (f feature) toEarthquake() (domain.Earthquake, error) {
	p := f.Properties
	if p == nil {
		return domain.Earthquake{}, errors.New("missing properties")
	}
	if p.Mag == nil {
		return domain.Earthquake{}, errors.New("missing mag")
	}
	if p.Place == nil {
		return domain.Earthquake{}, errors.New("missing place")
	}
	if p.Time == nil {
		return domain.Earthquake{}, errors.New("missing time")
	}
	millis, err := p.Time.Int64()
	if err != nil {
		return domain.Earthquake{}, fmt.Errorf("time %q is not an integer", p.Time.String())
	}

	var detailURL string
	if p.URL != nil {
		detailURL = *p.URL
	}
	return domain.NewEarthquake(millis, *p.Place, *p.Mag, detailURL), nil
}
