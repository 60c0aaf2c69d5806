// Package domain models USGS earthquake event data and the display rules
// applied to it.
//
// # Data Source
//
// Events come from the USGS FDSN event web service, queried with
// format=geojson, e.g.
//
//	https://earthquake.usgs.gov/fdsnws/event/1/query?format=geojson&limit=10&minmag=6&orderby=time
//
// The response is a GeoJSON FeatureCollection. Only the "properties" object
// of each feature is consumed:
//
//	mag    number   required, may be negative for micro-events
//	place  string   required, free text
//	time   integer  required, Unix epoch milliseconds (UTC)
//	url    string   optional, event detail page
//
// # Place Conventions
//
// USGS places are either relative to the nearest populated place or a bare
// region name:
//
//	"58km SW of San Francisco, CA"  →  offset "58 km SW of", location "San Francisco, CA"
//	"112 km WNW of Charagua, Bolivia"
//	"Pacific Rim"                   →  offset "Near the",    location "Pacific Rim"
//
// Older feeds omit the space between the distance and "km"; both spellings
// are accepted and the offset is always rendered with the space. See
// [SplitLocation].
//
// # Magnitude Categories
//
// Magnitudes are bucketed by their floor for color selection:
//
//	<0 undefined | 0–1 "0-2" | 2 "2-3" | … | 9 "9-10" | ≥10 "10+"
//
// The bucket key is a plain string; mapping it to a color belongs to the
// rendering side. See [MagnitudeCategoryOf].
package domain
