package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineDistance(t *testing.T) {
	// one degree of longitude on the equator
	d := HaversineDistance(0, 0, 0, 1)
	assert.InDelta(t, 111194.9, d, 1.0)

	assert.Equal(t, 0.0, HaversineDistance(48.2, 16.37, 48.2, 16.37))

	// symmetric
	assert.InDelta(t, HaversineDistance(52.52, 13.40, 48.85, 2.35), HaversineDistance(48.85, 2.35, 52.52, 13.40), 1e-6)
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name     string
		lat1     float64
		lon1     float64
		lat2     float64
		lon2     float64
		expected float64
	}{
		{name: "north", lat1: 0, lon1: 0, lat2: 1, lon2: 0, expected: 0},
		{name: "east", lat1: 0, lon1: 0, lat2: 0, lon2: 1, expected: 90},
		{name: "south", lat1: 1, lon1: 0, lat2: 0, lon2: 0, expected: 180},
		{name: "west", lat1: 0, lon1: 1, lat2: 0, lon2: 0, expected: 270},
		{name: "same point", lat1: 10, lon1: 10, lat2: 10, lon2: 10, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Bearing(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.expected, b, 1e-9)
			assert.GreaterOrEqual(t, b, 0.0)
			assert.Less(t, b, 360.0)
		})
	}
}

func TestNormalizeDegrees(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeDegrees(360))
	assert.Equal(t, 270.0, NormalizeDegrees(-90))
	assert.Equal(t, 10.0, NormalizeDegrees(730))
	assert.Less(t, NormalizeDegrees(-1e-15), 360.0)
}

func TestCircularMeanDegrees(t *testing.T) {
	assert.InDelta(t, 0.0, angleDiff(0, CircularMeanDegrees([]float64{350, 10})), 1e-9)
	assert.InDelta(t, 0.0, angleDiff(90, CircularMeanDegrees([]float64{80, 100})), 1e-9)
	assert.Equal(t, 0.0, CircularMeanDegrees(nil))
	assert.Equal(t, 0.0, CircularMeanDegrees([]float64{0, 180}))
}

func TestValidLatLng(t *testing.T) {
	assert.True(t, ValidLatLng(90, 180))
	assert.True(t, ValidLatLng(-90, -180))
	assert.False(t, ValidLatLng(90.0001, 0))
	assert.False(t, ValidLatLng(0, -180.5))
	assert.False(t, ValidLatLng(math.NaN(), 0))
	assert.False(t, ValidLatLng(0, math.Inf(1)))
}

func angleDiff(a, b float64) float64 {
	d := math.Abs(a - b)
	return math.Min(d, 360-d)
}
