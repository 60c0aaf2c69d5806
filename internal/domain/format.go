package domain

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	dateLayout = "Jan 02, 2006"
	timeLayout = "3:04 PM"
)

// FormatDate renders an epoch-millisecond timestamp as "Feb 14, 1965" in UTC.
func FormatDate(timeMillis int64) string {
	return FormatDateIn(timeMillis, time.UTC)
}

// FormatDateIn is FormatDate in the given zone. A nil zone means UTC.
func FormatDateIn(timeMillis int64, loc *time.Location) string {
	return inZone(timeMillis, loc).Format(dateLayout)
}

// FormatTime renders an epoch-millisecond timestamp as "11:11 PM" in UTC.
func FormatTime(timeMillis int64) string {
	return FormatTimeIn(timeMillis, time.UTC)
}

// FormatTimeIn is FormatTime in the given zone. A nil zone means UTC.
func FormatTimeIn(timeMillis int64, loc *time.Location) string {
	return inZone(timeMillis, loc).Format(timeLayout)
}

func inZone(timeMillis int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(timeMillis).In(loc)
}

// FormatMagnitude renders a magnitude with exactly one decimal place
// using English number conventions: 2.9 → "2.9", 4 → "4.0".
func FormatMagnitude(mag float64) string {
	return FormatMagnitudeFor(language.English, mag)
}

// FormatMagnitudeFor renders a magnitude with one decimal place using the
// number conventions of tag, e.g. "2,9" for German.
func FormatMagnitudeFor(tag language.Tag, mag float64) string {
	return message.NewPrinter(tag).Sprintf("%.1f", mag)
}
