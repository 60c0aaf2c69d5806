package domain

import (
	"encoding/json"
	"time"
)

// Earthquake is a single event from the feed. It is immutable once built by
// NewEarthquake; copies are safe to share between goroutines.
type Earthquake struct {
	timeMillis int64
	place      string
	magnitude  float64
	url        string
}

// NewEarthquake builds an Earthquake from already-parsed feed values.
func NewEarthquake(timeMillis int64, place string, magnitude float64, url string) Earthquake {
	return Earthquake{
		timeMillis: timeMillis,
		place:      place,
		magnitude:  magnitude,
		url:        url,
	}
}

// TimeMillis is the event time in Unix epoch milliseconds.
func (e Earthquake) TimeMillis() int64 { return e.timeMillis }

// Time is the event time as a UTC time.Time.
func (e Earthquake) Time() time.Time { return time.UnixMilli(e.timeMillis).UTC() }

// Place is the raw location text as supplied by the feed.
func (e Earthquake) Place() string { return e.place }

// Magnitude is the event magnitude as reported, possibly negative.
func (e Earthquake) Magnitude() float64 { return e.magnitude }

// URL is the event detail page, or "" when the feed omitted it.
func (e Earthquake) URL() string { return e.url }

type earthquakeJSON struct {
	Time  int64   `json:"time"`
	Place string  `json:"place"`
	Mag   float64 `json:"mag"`
	URL   string  `json:"url,omitempty"`
}

// MarshalJSON encodes the event with the same field names the feed uses.
func (e Earthquake) MarshalJSON() ([]byte, error) {
	return json.Marshal(earthquakeJSON{
		Time:  e.timeMillis,
		Place: e.place,
		Mag:   e.magnitude,
		URL:   e.url,
	})
}
