package localstore

import (
	"testing"

	"github.com/localnerve/crmsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignsNear(t *testing.T) {
	s := newTestStore(t, NewMemoryKV(0))

	// Roughly 1.1 km and 111 km north of the origin, plus one without coordinates.
	_, err := s.SaveSign(&models.Sign{Address: "far", Lat: ptr(41.0), Lng: ptr(-3.0)})
	require.NoError(t, err)
	_, err = s.SaveSign(&models.Sign{Address: "near", Lat: ptr(40.01), Lng: ptr(-3.0)})
	require.NoError(t, err)
	_, err = s.SaveSign(&models.Sign{Address: "unknown"})
	require.NoError(t, err)

	got := s.SignsNear(40.0, -3.0, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].Sign.Address)
	assert.InDelta(t, 1.11, got[0].DistanceKm, 0.05)

	got = s.SignsNear(40.0, -3.0, 200)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].Sign.Address)
	assert.Equal(t, "far", got[1].Sign.Address)
}
