package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-Template-SDK/senso-tracker/internal/models"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		month   string
		want    int
		wantErr bool
	}{
		{"202402", 29, false},
		{"202102", 28, false},
		{"200002", 29, false},
		{"190002", 28, false},
		{"202401", 31, false},
		{"202404", 30, false},
		{"202412", 31, false},
		{"202300", 0, true},
		{"202313", 0, true},
		{"20231", 0, true},
		{"2023-1", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			got, err := DaysInMonth(tt.month)
			if tt.wantErr {
				var ve *ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, tt.month, ve.Value)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVisibilityScore(t *testing.T) {
	tests := []struct {
		name string
		in   models.ScoreInputs
		want float64
	}{
		{
			name: "full matrix",
			in:   models.ScoreInputs{Sum: 12, DistinctLocations: 2, DistinctProducts: 3, DistinctPlatforms: 2, DistinctDays: 4},
			want: 25,
		},
		{
			name: "zero locations treated as one",
			in:   models.ScoreInputs{Sum: 0, DistinctLocations: 0, DistinctProducts: 2, DistinctPlatforms: 1, DistinctDays: 1},
			want: 0,
		},
		{
			name: "empty row set",
			in:   models.ScoreInputs{},
			want: 0,
		},
		{
			name: "single cell present",
			in:   models.ScoreInputs{Sum: 1, DistinctLocations: 1, DistinctProducts: 1, DistinctPlatforms: 1, DistinctDays: 1},
			want: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VisibilityScore(tt.in)
			assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMean_SkipsNil(t *testing.T) {
	one, three := 1, 3
	got := Mean([]*int{&one, nil, &three})
	require.NotNil(t, got)
	assert.InDelta(t, 2.0, *got, 1e-9)

	assert.Nil(t, Mean([]*float64{nil, nil}))
	assert.Nil(t, Mean[float64](nil))
}

func TestCompute(t *testing.T) {
	rank := 2.5
	s := Compute(models.ScoreInputs{Sum: 2, DistinctLocations: 1, DistinctProducts: 2, DistinctPlatforms: 1, DistinctDays: 2, AvgRank: &rank})
	assert.InDelta(t, 50.0, s.Visibility, 1e-9)
	assert.Equal(t, &rank, s.AverageRank)
	assert.Nil(t, s.AvgSentiment)
}
