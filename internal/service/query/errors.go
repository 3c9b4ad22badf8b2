package query

import (
	"errors"

	"github.com/kirinyoku/ferry-go/internal/service/inventory"
)

var (
	ErrVoyageNotFound = inventory.ErrVoyageNotFound
	ErrInvalidPage    = errors.New("invalid page")
)
