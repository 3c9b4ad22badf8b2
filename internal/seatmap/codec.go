// Package seatmap is the bit-packed seat occupancy model of a sailing: typed
// partition bitmaps, the per-vehicle capacity table and a pure decoder that turns
// stored bitmaps into a seat-indexed view.
package seatmap

import "fmt"

type PartitionSeats struct {
	Partition Partition `json:"partition"`
	Capacity  int       `json:"capacity"`
	Taken     []bool    `json:"taken"`
}

type ClassAvailability struct {
	Class     Class `json:"class"`
	Capacity  int   `json:"capacity"`
	Taken     int   `json:"taken"`
	Available int   `json:"available"`
}

// View is the decoded seat map of one sailing.
type View struct {
	Vehicle    VehicleType                    `json:"vehicle_type"`
	Partitions [PartitionCount]PartitionSeats `json:"partitions"`
	Classes    [ClassCount]ClassAvailability  `json:"classes"`
	Sold       int                            `json:"sold"`
}

// Decode expands bitmaps into per-seat flags and per-class counts. It fails if a
// bit is set beyond a partition's capacity, which means the stored row does not
// match the profile.
func Decode(bs Bitmaps, profile Profile) (View, error) {
	v := View{Vehicle: profile.Vehicle}

	for _, part := range Partitions {
		capacity := profile.Capacity(part)
		b := bs[part]
		if b.Above(capacity) {
			return View{}, fmt.Errorf("%s bitmap %#x exceeds capacity %d: %w",
				part, uint64(b), capacity, ErrSeatOutOfRange)
		}

		taken := make([]bool, capacity)
		for i := range taken {
			taken[i] = b.Has(i)
		}
		v.Partitions[part] = PartitionSeats{Partition: part, Capacity: capacity, Taken: taken}

		ca := &v.Classes[part.Class()]
		ca.Class = part.Class()
		ca.Capacity += capacity
		ca.Taken += b.Count()
	}

	for i := range v.Classes {
		v.Classes[i].Available = v.Classes[i].Capacity - v.Classes[i].Taken
		v.Sold += v.Classes[i].Taken
	}

	return v, nil
}

// Free returns the free slot indexes of a partition in ascending order.
func (v View) Free(part Partition) []int {
	if !part.Valid() {
		return nil
	}
	var out []int
	for i, taken := range v.Partitions[part].Taken {
		if !taken {
			out = append(out, i)
		}
	}
	return out
}
