package inventory

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
)

var (
	ErrSeatOutOfRange    = seatmap.ErrSeatOutOfRange
	ErrSeatAlreadyTaken  = errors.New("seat already taken")
	ErrSeatNotTaken      = errors.New("seat not taken")
	ErrVoyageNotFound    = errors.New("voyage not found")
	ErrVoyageNotBookable = errors.New("voyage is not open for sale")
	ErrEmptySelection    = errors.New("no seats selected")
)

// SeatError names the seat that failed a mutation. It unwraps to one of the
// seat sentinels above.
type SeatError struct {
	Seat domain.SeatRef
	Err  error
}

func (e *SeatError) Error() string {
	return fmt.Sprintf("%s seat %d: %v", e.Seat.Partition, e.Seat.Index, e.Err)
}

func (e *SeatError) Unwrap() error {
	return e.Err
}
