// internal/form/date.go
package form

import (
	"strings"
	"time"
)

// Date is a parsed calendar date. The zero value is not a valid date; callers
// must check the ok result of ParseDate.
type Date struct {
	Day   int
	Month int
	Year  int
}

// serialEpoch is the spreadsheet epoch: numeric cell values count days from
// 1899-12-30, per the common spreadsheet date-serialization convention.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// dateLayouts are tried in order against string values; the first layout that
// parses wins. Order matters: DD-MM-YYYY is preferred over the ambiguous
// US-style MM/DD/YYYY.
var dateLayouts = []string{
	"02-01-2006",
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"02-01-06",
	"2006/01/02",
}

// ParseDate converts a heterogeneous spreadsheet value into a calendar date.
// It accepts structured time values, strings in several formats, and numeric
// spreadsheet serials. Unparseable input yields ok=false, never an error:
// the caller treats it as a recorded per-row failure.
func ParseDate(v any) (Date, bool) {
	switch value := v.(type) {
	case time.Time:
		return fromTime(value), true
	case *time.Time:
		if value == nil {
			return Date{}, false
		}
		return fromTime(*value), true
	case string:
		trimmed := strings.TrimSpace(value)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return fromTime(t), true
			}
		}
		return Date{}, false
	case float64:
		return fromSerial(value), true
	case float32:
		return fromSerial(float64(value)), true
	case int:
		return fromSerial(float64(value)), true
	case int64:
		return fromSerial(float64(value)), true
	default:
		return Date{}, false
	}
}

func fromTime(t time.Time) Date {
	return Date{Day: t.Day(), Month: int(t.Month()), Year: t.Year()}
}

func fromSerial(serial float64) Date {
	t := serialEpoch.Add(time.Duration(serial * 24 * float64(time.Hour)))
	return fromTime(t)
}
