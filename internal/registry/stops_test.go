package registry

import (
	"errors"
	"testing"

	"bus-tracker/internal/transit"
)

func seededStops(t *testing.T) *Stops {
	t.Helper()
	c := NewStops()
	for _, s := range []transit.CatalogStop{
		{ID: "S1", Code: "PLC", Name: "Plaça Catalunya", Location: transit.Coordinate{Lat: 41.3870, Lng: 2.1700}},
		{ID: "S2", Code: "PDG", Name: "Passeig de Gràcia", Location: transit.Coordinate{Lat: 41.3917, Lng: 2.1650}},
		{ID: "S3", Code: "SGF", Name: "Sagrada Família", Location: transit.Coordinate{Lat: 41.4036, Lng: 2.1744}},
	} {
		if err := c.Add(s); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return c
}

func TestStops_Get(t *testing.T) {
	c := seededStops(t)
	if s, err := c.Get("S2"); err != nil || s.Code != "PDG" {
		t.Errorf("Get(S2) = %+v, %v", s, err)
	}
	if _, err := c.Get("S9"); !errors.Is(err, transit.ErrNotFound) {
		t.Errorf("Get(S9) error = %v, want ErrNotFound", err)
	}
}

func TestStops_SearchCaseInsensitive(t *testing.T) {
	c := seededStops(t)
	got := c.Search("pdg")
	if len(got) != 1 || got[0].ID != "S2" {
		t.Errorf("Search(pdg) = %+v, want S2", got)
	}
	got = c.Search("SAGRADA")
	if len(got) != 1 || got[0].ID != "S3" {
		t.Errorf("Search(SAGRADA) = %+v, want S3", got)
	}
}

func TestStops_NearbyDefaultRadius(t *testing.T) {
	c := seededStops(t)
	got := c.Nearby(transit.Coordinate{Lat: 41.3880, Lng: 2.1690}, 0)
	if len(got) != 2 {
		t.Fatalf("Nearby within 1 km = %d stops, want 2", len(got))
	}
	if got[0].Stop.ID != "S1" {
		t.Errorf("nearest = %s, want S1", got[0].Stop.ID)
	}
}
