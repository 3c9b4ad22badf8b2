package seatmap

import "fmt"

type Deck uint8

const (
	UpperDeck Deck = iota
	LowerDeck
)

func (d Deck) String() string {
	switch d {
	case UpperDeck:
		return "upper"
	case LowerDeck:
		return "lower"
	default:
		return fmt.Sprintf("deck(%d)", uint8(d))
	}
}

type Class uint8

const (
	Promo Class = iota
	Economy
	Business
)

// ClassCount is the number of fare classes sold on every vehicle.
const ClassCount = 3

func (c Class) String() string {
	switch c {
	case Promo:
		return "promo"
	case Economy:
		return "economy"
	case Business:
		return "business"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

func ParseClass(s string) (Class, error) {
	for c := Promo; c <= Business; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown class %q", s)
}

// Partition is one of the six fixed seat pools of a sailing (deck x class).
type Partition uint8

const (
	UpperPromo Partition = iota
	UpperEconomy
	UpperBusiness
	LowerPromo
	LowerEconomy
	LowerBusiness
)

// PartitionCount is the number of seat pools per sailing.
const PartitionCount = 6

// Partitions lists every partition in storage order.
var Partitions = [PartitionCount]Partition{
	UpperPromo, UpperEconomy, UpperBusiness,
	LowerPromo, LowerEconomy, LowerBusiness,
}

func PartitionOf(d Deck, c Class) Partition {
	return Partition(uint8(d)*ClassCount + uint8(c))
}

func (p Partition) Deck() Deck   { return Deck(uint8(p) / ClassCount) }
func (p Partition) Class() Class { return Class(uint8(p) % ClassCount) }

func (p Partition) Valid() bool { return p < PartitionCount }

func (p Partition) String() string {
	if !p.Valid() {
		return fmt.Sprintf("partition(%d)", uint8(p))
	}
	return p.Deck().String() + "_" + p.Class().String()
}

func ParsePartition(s string) (Partition, error) {
	for _, p := range Partitions {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown partition %q", s)
}

func (p Partition) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid partition %d", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Partition) UnmarshalText(b []byte) error {
	v, err := ParsePartition(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (c Class) MarshalText() ([]byte, error) {
	if c > Business {
		return nil, fmt.Errorf("invalid class %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Class) UnmarshalText(b []byte) error {
	v, err := ParseClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
