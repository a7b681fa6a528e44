package db

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed seed.json
var defaultSeed []byte

// LoadSeed decodes a fleet from a JSON file, or from the built-in demo fleet
// when path is empty.
func LoadSeed(path string) (Fleet, error) {
	data := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Fleet{}, fmt.Errorf("read seed: %w", err)
		}
		data = b
	}
	var f Fleet
	if err := json.Unmarshal(data, &f); err != nil {
		return Fleet{}, fmt.Errorf("decode seed: %w", err)
	}
	for i := range f.Trips {
		f.Trips[i].StartTime = normalizeClock(f.Trips[i].StartTime)
	}
	return f, nil
}
