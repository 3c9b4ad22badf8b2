package station

import (
	"context"
	"testing"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoints(t *testing.T) {
	store := memory.NewStore()
	store.PutStation(domain.Station{ID: 1, City: "Split", Title: "Split Port"})
	store.PutStation(domain.Station{ID: 2, City: "Supetar", Title: "Supetar Pier"})

	dir := NewDirectory(store.Stations(), nil, 0)

	from, to, err := Endpoints(context.Background(), dir, domain.Route{FromStationID: 1, ToStationID: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.Endpoint{StationID: 1, City: "Split", Title: "Split Port"}, from)
	assert.Equal(t, "Supetar", to.City)

	_, _, err = Endpoints(context.Background(), dir, domain.Route{FromStationID: 1, ToStationID: 9})
	assert.ErrorIs(t, err, ErrStationNotFound)
}
