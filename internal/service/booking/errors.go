package booking

import (
	"errors"

	"github.com/kirinyoku/ferry-go/internal/service/inventory"
)

var (
	ErrClassMismatch   = errors.New("seat partition does not belong to the ticket class")
	ErrEmptySelection  = inventory.ErrEmptySelection
	ErrEventInProgress = errors.New("ticket event is already being processed")
	ErrInvalidEvent    = errors.New("invalid ticket event")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrTicketExists    = errors.New("ticket already exists")
)
