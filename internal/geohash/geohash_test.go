package geohash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	score, err := Encode(-122.2612, 37.7564) // Oakland-ish
	require.NoError(t, err)

	lon, lat := Decode(score)
	require.InDelta(t, -122.2612, lon, 0.01)
	require.InDelta(t, 37.7564, lat, 0.01)
}

func TestEncodeRejectsOutOfRange(t *testing.T) {
	_, err := Encode(0, 90)
	require.Error(t, err)

	_, err = Encode(200, 0)
	require.Error(t, err)
}

func TestHaversineZeroDistance(t *testing.T) {
	d := HaversineMeters(-122.27, 37.80, -122.27, 37.80)
	require.InDelta(t, 0, d, 0.001)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Oakland to San Francisco, roughly 13km as the crow flies.
	d := HaversineMeters(-122.2712, 37.8044, -122.4194, 37.7749)
	require.InDelta(t, 13000, d, 2000)
}

func TestUnitToMeters(t *testing.T) {
	m, ok := UnitToMeters("km")
	require.True(t, ok)
	require.Equal(t, 1000.0, m)

	_, ok = UnitToMeters("parsec")
	require.False(t, ok)
}
