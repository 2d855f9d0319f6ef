package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(units ...int64) []MonthTotal {
	out := make([]MonthTotal, len(units))
	for i, u := range units {
		out[i] = MonthTotal{Year: 2025, Month: i + 1, Total: Money{Cents: u * 100}}
	}
	return out
}

func TestPredict(t *testing.T) {
	tests := []struct {
		name      string
		series    []MonthTotal
		wantOK    bool
		want      float64
		wantSlope float64
	}{
		{name: "no history", series: nil, wantOK: false},
		{name: "single month", series: seriesOf(500), wantOK: false},
		{name: "two months", series: seriesOf(50, 70), wantOK: true, want: 90, wantSlope: 20},
		{name: "perfect line", series: seriesOf(100, 200, 300), wantOK: true, want: 400, wantSlope: 100},
		{name: "flat", series: seriesOf(80, 80, 80, 80), wantOK: true, want: 80, wantSlope: 0},
		{name: "declining", series: seriesOf(300, 200), wantOK: true, want: 100, wantSlope: -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := Predict(tt.series)

			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, f.Prediction)
			assert.Equal(t, tt.wantSlope, f.Slope)
			assert.Equal(t, tt.series, f.History)
		})
	}
}

func TestPredict_NoisySeries(t *testing.T) {
	// Sxy = 5000, Sxx = 17.5
	f, ok := Predict(seriesOf(8000, 9500, 11000, 7000, 12500, 9000))

	require.True(t, ok)
	assert.InDelta(t, 2000.0/7, f.Slope, 1e-9)
	assert.InDelta(t, 61500.0/7, f.Intercept, 1e-9)
	assert.InDelta(t, 10500.0, f.Prediction, 1e-9)
}

func TestPredict_IsDeterministic(t *testing.T) {
	series := seriesOf(123, 456, 789, 12, 345)

	first, _ := Predict(series)
	for i := 0; i < 10; i++ {
		again, _ := Predict(series)
		assert.Equal(t, first.Prediction, again.Prediction)
	}
}

func TestAliceScenario(t *testing.T) {
	expenses := []Expense{
		{Amount: Money{Cents: 5000}, Category: "Food", Date: NewDate(2025, 1, 15)},
		{Amount: Money{Cents: 7000}, Category: "Food", Date: NewDate(2025, 2, 15)},
	}

	series := BuildMonthlySeries(expenses)
	require.Len(t, series, 2)
	assert.Equal(t, "2025-01", series[0].Label)
	assert.Equal(t, int64(5000), series[0].Total.Cents)
	assert.Equal(t, "2025-02", series[1].Label)
	assert.Equal(t, int64(7000), series[1].Total.Cents)

	f, ok := Predict(series)
	require.True(t, ok)
	assert.Equal(t, 50.0, f.Intercept)
	assert.Equal(t, 20.0, f.Slope)
	assert.Equal(t, 90.0, f.Prediction)
}
