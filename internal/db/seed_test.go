package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSeed_Default(t *testing.T) {
	f, err := LoadSeed("")
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if len(f.Buses) == 0 || len(f.Stops) == 0 || len(f.Trips) == 0 {
		t.Fatalf("default seed is empty: %+v", f)
	}
	busIDs := map[string]bool{}
	for _, b := range f.Buses {
		busIDs[b.ID] = true
	}
	for _, tr := range f.Trips {
		if !busIDs[tr.BusID] {
			t.Errorf("trip %s references unknown bus %s", tr.ID, tr.BusID)
		}
		if len(tr.Stops) == 0 {
			t.Errorf("trip %s has no stops", tr.ID)
		}
	}
}

func TestLoadSeed_FileNormalizesStartTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.json")
	data := `{"buses":[{"id":"X"}],"trips":[{"id":"T","busId":"X","routeId":"R","startTime":"7:05:00","stops":[{"id":"S"}]}]}`
	os.WriteFile(path, []byte(data), 0644)

	f, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if got := f.Trips[0].StartTime; got != "07:05" {
		t.Errorf("StartTime = %q, want 07:05", got)
	}
}

func TestLoadSeed_Errors(t *testing.T) {
	if _, err := LoadSeed("/tmp/does-not-exist-fleet.json"); err == nil {
		t.Error("LoadSeed should fail for missing file")
	}
	path := filepath.Join(t.TempDir(), "broken.json")
	os.WriteFile(path, []byte("{invalid json"), 0644)
	if _, err := LoadSeed(path); err == nil {
		t.Error("LoadSeed should fail for corrupt json")
	}
}

func TestNormalizeClock(t *testing.T) {
	cases := map[string]string{
		"08:05:00": "08:05",
		"8:5":      "08:05",
		"23:59":    "23:59",
		"garbage":  "garbage",
	}
	for in, want := range cases {
		if got := normalizeClock(in); got != want {
			t.Errorf("normalizeClock(%q) = %q, want %q", in, got, want)
		}
	}
}
