// Package timestamp converts between Unix timestamps and dates.
package timestamp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DisplayLayout is the en-US 24-hour display form.
const DisplayLayout = "01/02/2006, 15:04:05"

// ISOLayout matches JavaScript's Date.toISOString.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// year3000 is the cut-off, in milliseconds, of the seconds interpretation.
const year3000 = 32_503_680_000_000

var (
	ErrEmpty   = errors.New("timestamp: please enter a timestamp")
	ErrInvalid = errors.New("timestamp: invalid timestamp format")
	ErrNoDate  = errors.New("timestamp: please select a date")
	ErrBadDate = errors.New("timestamp: invalid date")
)

// Unit says how a numeric input was read.
type Unit string

const (
	Seconds      Unit = "seconds"
	Milliseconds Unit = "milliseconds"
)

// Conversion is a parsed timestamp.
type Conversion struct {
	Time    time.Time `json:"-"`
	Unit    Unit      `json:"unit,omitempty"`
	Display string    `json:"display"`
	ISO     string    `json:"iso"`
}

func (c Conversion) String() string {
	return fmt.Sprintf("%s (%s)", c.Display, c.ISO)
}

// Parse reads a Unix timestamp. Ten digits are seconds and thirteen are
// milliseconds; any other length is read as seconds when that lands after
// the epoch and before the year 3000, else as milliseconds. Like a
// JavaScript parseInt, trailing non-digits are ignored.
func Parse(s string, loc *time.Location) (Conversion, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Conversion{}, ErrEmpty
	}
	n, err := leadingInt(s)
	if err != nil {
		return Conversion{}, err
	}

	var unit Unit
	switch len(s) {
	case 10:
		unit = Seconds
	case 13:
		unit = Milliseconds
	default:
		if n > 0 && n < year3000/1000 {
			unit = Seconds
		} else {
			unit = Milliseconds
		}
	}

	var t time.Time
	if unit == Seconds {
		t = time.Unix(n, 0)
	} else {
		t = time.UnixMilli(n)
	}
	c := Format(t, loc)
	c.Unit = unit
	return c, nil
}

// Format renders t for display in loc (local time when nil) and as ISO-8601.
func Format(t time.Time, loc *time.Location) Conversion {
	if loc == nil {
		loc = time.Local
	}
	return Conversion{
		Time:    t,
		Display: t.In(loc).Format(DisplayLayout),
		ISO:     t.UTC().Format(ISOLayout),
	}
}

func leadingInt(s string) (int64, error) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, ErrInvalid
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return n, nil
}

// Epoch is a date expressed as Unix seconds and milliseconds.
type Epoch struct {
	Seconds      int64 `json:"seconds"`
	Milliseconds int64 `json:"milliseconds"`
}

func (e Epoch) String() string {
	return fmt.Sprintf("Seconds: %d\nMilliseconds: %d", e.Seconds, e.Milliseconds)
}

// FromTime converts t.
func FromTime(t time.Time) Epoch {
	ms := t.UnixMilli()
	return Epoch{Seconds: floorDiv(ms, 1000), Milliseconds: ms}
}

// ParseDate reads a free-form date ("2024-03-01 12:00", "March 1, 2024",
// "03/01/2024") in loc and returns its epoch values.
func ParseDate(s string, loc *time.Location) (Epoch, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Epoch{}, ErrNoDate
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return Epoch{}, fmt.Errorf("%w: %v", ErrBadDate, err)
	}
	return FromTime(t), nil
}

// Current is the clock display.
type Current struct {
	Epoch
	Display string `json:"display"`
}

// Now returns the current time for display in loc.
func Now(loc *time.Location) Current {
	return At(time.Now(), loc)
}

// At is Now for a fixed instant.
func At(t time.Time, loc *time.Location) Current {
	if loc == nil {
		loc = time.Local
	}
	return Current{Epoch: FromTime(t), Display: t.In(loc).Format(DisplayLayout)}
}

// Location maps the timestampFormat setting to a location.
func Location(setting string) *time.Location {
	if strings.EqualFold(setting, "utc") {
		return time.UTC
	}
	return time.Local
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
