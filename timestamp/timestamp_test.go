package timestamp

import (
	"errors"
	"testing"
	"time"
)

func TestParse_Units(t *testing.T) {
	tests := []struct {
		in      string
		unit    Unit
		display string
		iso     string
	}{
		{"1700000000", Seconds, "11/14/2023, 22:13:20", "2023-11-14T22:13:20.000Z"},
		{"1700000000123", Milliseconds, "11/14/2023, 22:13:20", "2023-11-14T22:13:20.123Z"},
		{"86400", Seconds, "01/02/1970, 00:00:00", "1970-01-02T00:00:00.000Z"},
		{"99999999999", Milliseconds, "03/03/1973, 09:46:39", "1973-03-03T09:46:39.999Z"},
		{"32503680000", Milliseconds, "01/12/1971, 04:48:00", "1971-01-12T04:48:00.000Z"},
		{"0", Milliseconds, "01/01/1970, 00:00:00", "1970-01-01T00:00:00.000Z"},
		{" 1700000000\n", Seconds, "11/14/2023, 22:13:20", "2023-11-14T22:13:20.000Z"},
		{"1700000000abc", Milliseconds, "01/20/1970, 16:13:20", "1970-01-20T16:13:20.000Z"},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in, time.UTC)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if got.Unit != tt.unit || got.ISO != tt.iso {
			t.Errorf("Parse(%q): got %s %s, want %s %s", tt.in, got.Unit, got.ISO, tt.unit, tt.iso)
		}
		if got.Display != tt.display {
			t.Errorf("Parse(%q) display: got %q, want %q", tt.in, got.Display, tt.display)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse("  ", nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("blank: got %v", err)
	}
	for _, in := range []string{"abc", "-", "x123"} {
		if _, err := Parse(in, nil); !errors.Is(err, ErrInvalid) {
			t.Errorf("Parse(%q): got %v, want ErrInvalid", in, err)
		}
	}
}

func TestConversion_String(t *testing.T) {
	c, err := Parse("1700000000", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := c.String(), "11/14/2023, 22:13:20 (2023-11-14T22:13:20.000Z)"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"2023-11-14 22:13:20", 1700000000},
		{"2023-11-14T22:13:20Z", 1700000000},
		{"November 14, 2023", 1699920000},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in, time.UTC)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", tt.in, err)
		}
		if got.Seconds != tt.want || got.Milliseconds != tt.want*1000 {
			t.Errorf("ParseDate(%q): got %+v, want %d", tt.in, got, tt.want)
		}
	}
	if _, err := ParseDate("", nil); !errors.Is(err, ErrNoDate) {
		t.Fatalf("empty: got %v", err)
	}
	if _, err := ParseDate("not a date at all", time.UTC); !errors.Is(err, ErrBadDate) {
		t.Fatalf("garbage: got %v", err)
	}
}

func TestFromTime_NegativeFloors(t *testing.T) {
	e := FromTime(time.UnixMilli(-1500))
	if e.Seconds != -2 || e.Milliseconds != -1500 {
		t.Fatalf("got %+v", e)
	}
	if got := e.String(); got != "Seconds: -2\nMilliseconds: -1500" {
		t.Fatalf("string: got %q", got)
	}
}

func TestAt(t *testing.T) {
	c := At(time.Unix(1700000000, 0), time.UTC)
	if c.Seconds != 1700000000 || c.Display != "11/14/2023, 22:13:20" {
		t.Fatalf("got %+v", c)
	}
	if Location("UTC") != time.UTC || Location("local") != time.Local {
		t.Fatal("location mapping")
	}
}

func TestFormat_Location(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skip("no tzdata")
	}
	c := Format(time.Unix(1700000000, 0), paris)
	if c.Display != "11/14/2023, 23:13:20" || c.ISO != "2023-11-14T22:13:20.000Z" {
		t.Fatalf("got %+v", c)
	}
}
