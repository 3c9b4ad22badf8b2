package seatmap

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrSeatOutOfRange      = errors.New("seat index out of range")
	ErrUnknownVehicleType  = errors.New("unknown vehicle type")
	ErrInvalidProfile      = errors.New("invalid capacity profile")
	ErrDuplicateProfileTag = errors.New("duplicate vehicle type")
)

// VehicleType tags a ship category sharing one seating layout.
type VehicleType string

const (
	VehicleStandard VehicleType = "standard"
	VehicleFast     VehicleType = "fast"
)

// Profile is the seat count of every partition for one vehicle type.
type Profile struct {
	Vehicle    VehicleType
	Capacities [PartitionCount]int
}

func (p Profile) Capacity(part Partition) int {
	if !part.Valid() {
		return 0
	}
	return p.Capacities[part]
}

// ClassCapacity is the number of seats of a class across both decks.
func (p Profile) ClassCapacity(c Class) int {
	return p.Capacity(PartitionOf(UpperDeck, c)) + p.Capacity(PartitionOf(LowerDeck, c))
}

func (p Profile) Total() int {
	n := 0
	for _, c := range p.Capacities {
		n += c
	}
	return n
}

// Check validates a seat slot against the profile.
func (p Profile) Check(part Partition, index int) error {
	if !part.Valid() {
		return fmt.Errorf("%s: %w", part, ErrSeatOutOfRange)
	}
	if index < 0 || index >= p.Capacities[part] {
		return fmt.Errorf("%s seat %d (capacity %d): %w", part, index, p.Capacities[part], ErrSeatOutOfRange)
	}
	return nil
}

func (p Profile) Validate() error {
	if p.Vehicle == "" {
		return fmt.Errorf("%w: empty vehicle type", ErrInvalidProfile)
	}
	for _, part := range Partitions {
		c := p.Capacities[part]
		if c <= 0 || c > MaxCapacity {
			return fmt.Errorf("%w: %s %s capacity %d not in 1..%d",
				ErrInvalidProfile, p.Vehicle, part, c, MaxCapacity)
		}
	}
	return nil
}

// Profiles is the capacity table keyed by vehicle type. The zero value is empty;
// use DefaultProfiles for the built-in fleet.
type Profiles struct {
	byType map[VehicleType]Profile
}

func NewProfiles(list ...Profile) (*Profiles, error) {
	ps := &Profiles{byType: make(map[VehicleType]Profile, len(list))}
	for _, p := range list {
		if err := ps.Add(p); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

// DefaultProfiles returns the built-in standard and fast vessel layouts.
func DefaultProfiles() *Profiles {
	ps, err := NewProfiles(
		Profile{
			Vehicle:    VehicleStandard,
			Capacities: [PartitionCount]int{20, 20, 8, 20, 24, 8},
		},
		Profile{
			Vehicle:    VehicleFast,
			Capacities: [PartitionCount]int{40, 40, 12, 40, 48, 12},
		},
	)
	if err != nil {
		panic(err)
	}
	return ps
}

func (ps *Profiles) Add(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if ps.byType == nil {
		ps.byType = make(map[VehicleType]Profile)
	}
	if _, ok := ps.byType[p.Vehicle]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProfileTag, p.Vehicle)
	}
	ps.byType[p.Vehicle] = p
	return nil
}

func (ps *Profiles) Lookup(v VehicleType) (Profile, error) {
	p, ok := ps.byType[v]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownVehicleType, v)
	}
	return p, nil
}

func (ps *Profiles) Types() []VehicleType {
	out := make([]VehicleType, 0, len(ps.byType))
	for v := range ps.byType {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
