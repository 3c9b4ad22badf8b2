package config

import (
	"fmt"
	"os"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"gopkg.in/yaml.v3"
)

type stationsFile struct {
	Stations []struct {
		ID    int64  `yaml:"id"`
		City  string `yaml:"city"`
		Title string `yaml:"title"`
	} `yaml:"stations"`
}

// LoadStations reads the station seed used by the in-memory store. An empty
// path yields no stations.
//
//	stations:
//	  - {id: 1, city: Split, title: Split Port}
func LoadStations(path string) ([]domain.Station, error) {
	const op = "config.LoadStations"

	if path == "" {
		return nil, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var f stationsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%s: %s:%w", op, path, err)
	}

	seen := make(map[int64]bool, len(f.Stations))
	out := make([]domain.Station, 0, len(f.Stations))
	for _, s := range f.Stations {
		if s.ID <= 0 {
			return nil, fmt.Errorf("%s: %s: station id must be positive", op, path)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("%s: %s: duplicate station id %d", op, path, s.ID)
		}
		seen[s.ID] = true
		out = append(out, domain.Station{ID: s.ID, City: s.City, Title: s.Title})
	}

	return out, nil
}
