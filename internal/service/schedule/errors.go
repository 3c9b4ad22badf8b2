package schedule

import (
	"errors"

	"github.com/kirinyoku/ferry-go/internal/service/inventory"
)

var (
	ErrTemplateNotFound = errors.New("schedule template not found")
	ErrInvalidTemplate  = errors.New("invalid schedule template")
	ErrInvalidRange     = errors.New("invalid date range")
	ErrVoyageNotFound   = inventory.ErrVoyageNotFound
	ErrVoyageHasSales   = errors.New("voyage already has sold seats")
	ErrVoyageClosed     = errors.New("voyage is no longer active")
)
