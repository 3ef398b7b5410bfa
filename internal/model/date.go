package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateSpecificity orders how much of a date is actually known
type DateSpecificity int

const (
	SpecificityNone  DateSpecificity = 0
	SpecificityYear  DateSpecificity = 1 // YYYY
	SpecificityMonth DateSpecificity = 2 // YYYY-MM
	SpecificityDay   DateSpecificity = 3 // YYYY-MM-DD
)

// Date is a calendar date plus the specificity implied by its source format.
// Unknown month/day default to January / the 1st.
type Date struct {
	Time        time.Time
	Specificity DateSpecificity
}

// ParseDate accepts "", "YYYY", "YYYY-MM" and "YYYY-MM-DD" (a longer
// timestamp is truncated to its date part). Anything else yields the zero Date.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[4] == '-' {
		s = s[:10]
	}

	switch len(s) {
	case 4:
		year, err := strconv.Atoi(s)
		if err != nil || year <= 0 {
			return Date{}
		}
		return YearDate(year)
	case 7:
		t, err := time.Parse("2006-01", s)
		if err != nil {
			return Date{}
		}
		return Date{Time: t, Specificity: SpecificityMonth}
	case 10:
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return Date{}
		}
		return Date{Time: t, Specificity: SpecificityDay}
	}
	return Date{}
}

// YearDate returns a year-only date
func YearDate(year int) Date {
	return Date{
		Time:        time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		Specificity: SpecificityYear,
	}
}

// IsZero reports whether no date is known
func (d Date) IsZero() bool {
	return d.Specificity == SpecificityNone
}

// Year returns the year, or 0 when unknown
func (d Date) Year() int {
	if d.IsZero() {
		return 0
	}
	return d.Time.Year()
}

// String renders the date in the format matching its specificity
func (d Date) String() string {
	switch d.Specificity {
	case SpecificityYear:
		return fmt.Sprintf("%04d", d.Time.Year())
	case SpecificityMonth:
		return d.Time.Format("2006-01")
	case SpecificityDay:
		return d.Time.Format("2006-01-02")
	default:
		return ""
	}
}

// MarshalJSON encodes the date as its specificity-preserving string
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a date string produced by MarshalJSON
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = ParseDate(s)
	return nil
}

// MarshalYAML keeps YAML output consistent with JSON
func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// SafeUpdate overwrites d with next only if d is empty or next is strictly
// more specific. Equal specificity keeps the value written first.
// Returns true if d changed.
func (d *Date) SafeUpdate(next Date) bool {
	if next.IsZero() {
		return false
	}
	if d.IsZero() || next.Specificity > d.Specificity {
		*d = next
		return true
	}
	return false
}

// SafeUpdateDate applies the SafeUpdate rule to string-encoded dates
func SafeUpdateDate(existing, candidate string) string {
	d := ParseDate(existing)
	d.SafeUpdate(ParseDate(candidate))
	return d.String()
}
