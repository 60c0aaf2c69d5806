package domain

import (
	"regexp"
)

// NearThe is the offset label used when a place carries no distance clause.
const NearThe = "Near the"

// offsetRe matches a leading USGS distance clause, e.g. "58km SW of" or
// "112 km WNW of": 1-4 digits, optional space, "km", 1-3 uppercase
// direction letters, " of". The clause must end the string or be followed
// by a space.
var offsetRe = regexp.MustCompile(`^(\d{1,4}) ?km (\p{Lu}{1,3}) of(?: |$)`)

// SplitLocation separates a place string into its offset clause and the
// named location.
//
//	"58km SW of San Francisco, CA" → ("58 km SW of", "San Francisco, CA")
//	"Pacific Rim"                  → ("Near the", "Pacific Rim")
func SplitLocation(place string) (offset, location string) {
	m := offsetRe.FindStringSubmatchIndex(place)
	if m == nil {
		return NearThe, place
	}

	distance := place[m[2]:m[3]]
	direction := place[m[4]:m[5]]
	return distance + " km " + direction + " of", place[m[1]:]
}
