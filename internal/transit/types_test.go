package transit

import (
	"errors"
	"testing"
)

func TestParseClock_Valid(t *testing.T) {
	cases := map[string]int{
		"00:00":    0,
		"08:30":    8*3600 + 30*60,
		" 23:59 ":  23*3600 + 59*60,
		"07:05:09": 7*3600 + 5*60 + 9,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil {
			t.Fatalf("ParseClock(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseClock(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseClock_Invalid(t *testing.T) {
	for _, in := range []string{"", "8", "24:00", "12:60", "ab:cd", "1:2:3:4"} {
		if _, err := ParseClock(in); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("ParseClock(%q) error = %v, want ErrInvalidArgument", in, err)
		}
	}
}

func TestTripTerminal(t *testing.T) {
	trip := Trip{Stops: []Stop{{ID: "S0"}, {ID: "S1"}}}
	if trip.Terminal() {
		t.Error("index 0 of 2 stops should not be terminal")
	}
	trip.CurrentStopIndex = 1
	if !trip.Terminal() {
		t.Error("index 1 of 2 stops should be terminal")
	}
}
