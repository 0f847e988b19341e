package docgen

import (
	"fmt"
	"time"
)

var frenchMonths = [12]string{
	"janv", "févr", "mars", "avr", "mai", "juin",
	"juil", "août", "sept", "oct", "nov", "déc",
}

// dateLayouts lists the wire formats the data store emits for date and
// dateTime fields.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FrenchDate formats t for display in generated file names, using
// abbreviated French month names.
func FrenchDate(t time.Time, withTime bool) string {
	s := fmt.Sprintf("%02d-%s-%d", t.Day(), frenchMonths[t.Month()-1], t.Year())
	if withTime {
		s += fmt.Sprintf(" %02dh%02d", t.Hour(), t.Minute())
	}
	return s
}

// YMD rewrites an ISO date as DD-MM-YYYY for title composition. An
// unparseable value yields the empty string.
func YMD(iso string) string {
	t, ok := parseDate(iso)
	if !ok {
		return ""
	}
	return t.Format("02-01-2006")
}

// dayMonthYear is the in-document rendering of date fields.
func dayMonthYear(iso string) (string, bool) {
	t, ok := parseDate(iso)
	if !ok {
		return "", false
	}
	return t.Format("02/01/2006"), true
}
