package seatmap

import "math/bits"

// MaxCapacity is the widest partition a single Bitmap can describe.
const MaxCapacity = 64

// Bitmap is the occupancy of one partition. Bit i (LSB first) is seat slot i.
type Bitmap uint64

func (b Bitmap) Has(i int) bool {
	if i < 0 || i >= MaxCapacity {
		return false
	}
	return b&(1<<uint(i)) != 0
}

func (b Bitmap) Set(i int) Bitmap   { return b | 1<<uint(i) }
func (b Bitmap) Clear(i int) Bitmap { return b &^ (1 << uint(i)) }
func (b Bitmap) Count() int         { return bits.OnesCount64(uint64(b)) }

// Above reports whether any bit at or above capacity is set.
func (b Bitmap) Above(capacity int) bool {
	if capacity >= MaxCapacity {
		return false
	}
	return b>>uint(capacity) != 0
}

// Bitmaps holds the six partition bitmaps of one sailing in partition order.
type Bitmaps [PartitionCount]Bitmap

func (bs Bitmaps) Count() int {
	n := 0
	for _, b := range bs {
		n += b.Count()
	}
	return n
}
