package publisher

import "testing"

func TestSubject(t *testing.T) {
	cases := []struct {
		prefix, channel, want string
	}{
		{"bustracker", "trip-T1", "bustracker.trip-T1"},
		{"bustracker", "route-Line 4", "bustracker.route-Line_4"},
		{"", "route-updates", "route-updates"},
		{"city.buses", "trip-a.b>*", "city.buses.trip-a_b__"},
	}
	for _, c := range cases {
		if got := Subject(prefixToken(c.prefix), c.channel); got != c.want {
			t.Errorf("Subject(%q, %q) = %q, want %q", c.prefix, c.channel, got, c.want)
		}
	}
}

func TestSubjectToken_Empty(t *testing.T) {
	if got := subjectToken("  "); got != "_" {
		t.Errorf("subjectToken(blank) = %q, want _", got)
	}
}
