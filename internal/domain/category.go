package domain

import "math"

// MagnitudeCategory is the bucket key used to pick a magnitude color.
type MagnitudeCategory string

const (
	CategoryUndefined MagnitudeCategory = "undefined"
	Category0to2      MagnitudeCategory = "0-2"
	Category2to3      MagnitudeCategory = "2-3"
	Category3to4      MagnitudeCategory = "3-4"
	Category4to5      MagnitudeCategory = "4-5"
	Category5to6      MagnitudeCategory = "5-6"
	Category6to7      MagnitudeCategory = "6-7"
	Category7to8      MagnitudeCategory = "7-8"
	Category8to9      MagnitudeCategory = "8-9"
	Category9to10     MagnitudeCategory = "9-10"
	Category10Plus    MagnitudeCategory = "10+"
)

// Categories lists every bucket key, undefined first, then ascending.
var Categories = []MagnitudeCategory{
	CategoryUndefined,
	Category0to2,
	Category2to3,
	Category3to4,
	Category4to5,
	Category5to6,
	Category6to7,
	Category7to8,
	Category8to9,
	Category9to10,
	Category10Plus,
}

// MagnitudeCategoryOf buckets a magnitude by its floor. NaN is undefined.
func MagnitudeCategoryOf(mag float64) MagnitudeCategory {
	if math.IsNaN(mag) {
		return CategoryUndefined
	}
	n := math.Floor(mag)
	switch {
	case n < 0:
		return CategoryUndefined
	case n < 2:
		return Category0to2
	case n >= 10:
		return Category10Plus
	}
	// 2..9
	return Categories[int(n)]
}
