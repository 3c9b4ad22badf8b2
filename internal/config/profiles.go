package config

import (
	"fmt"
	"os"

	"github.com/kirinyoku/ferry-go/internal/seatmap"
	"gopkg.in/yaml.v3"
)

type deckYAML struct {
	Promo    int `yaml:"promo"`
	Economy  int `yaml:"economy"`
	Business int `yaml:"business"`
}

type profileYAML struct {
	Vehicle string   `yaml:"vehicle"`
	Upper   deckYAML `yaml:"upper"`
	Lower   deckYAML `yaml:"lower"`
}

type profilesFile struct {
	Profiles []profileYAML `yaml:"profiles"`
}

// LoadProfiles returns the built-in vehicle profiles plus those in the YAML
// file at path. An empty path yields the built-ins only. A file may add new
// vehicle types but not redefine built-in ones.
//
//	profiles:
//	  - vehicle: catamaran
//	    upper: {promo: 30, economy: 30, business: 10}
//	    lower: {promo: 30, economy: 36, business: 10}
func LoadProfiles(path string) (*seatmap.Profiles, error) {
	const op = "config.LoadProfiles"

	ps := seatmap.DefaultProfiles()
	if path == "" {
		return ps, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	extra, err := parseProfiles(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %s:%w", op, path, err)
	}

	for _, p := range extra {
		if err := ps.Add(p); err != nil {
			return nil, fmt.Errorf("%s: %s:%w", op, path, err)
		}
	}

	return ps, nil
}

func parseProfiles(b []byte) ([]seatmap.Profile, error) {
	var f profilesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	out := make([]seatmap.Profile, 0, len(f.Profiles))
	for _, p := range f.Profiles {
		var caps [seatmap.PartitionCount]int
		caps[seatmap.UpperPromo] = p.Upper.Promo
		caps[seatmap.UpperEconomy] = p.Upper.Economy
		caps[seatmap.UpperBusiness] = p.Upper.Business
		caps[seatmap.LowerPromo] = p.Lower.Promo
		caps[seatmap.LowerEconomy] = p.Lower.Economy
		caps[seatmap.LowerBusiness] = p.Lower.Business

		out = append(out, seatmap.Profile{Vehicle: seatmap.VehicleType(p.Vehicle), Capacities: caps})
	}

	return out, nil
}
