package core

// MinForecastMonths is the number of distinct months Predict needs.
const MinForecastMonths = 2

// Forecast is a linear extrapolation of the monthly series one step ahead.
type Forecast struct {
	Prediction float64 // currency units
	Slope      float64
	Intercept  float64
	History    []MonthTotal
}

// Predict fits y = Intercept + Slope*i by ordinary least squares, where i is
// the position of each month in the series (0, 1, 2, ...) and y its total in
// currency units, and evaluates the line at i = len(series).
// ok is false when the series has fewer than MinForecastMonths points.
func Predict(series []MonthTotal) (f Forecast, ok bool) {
	n := len(series)
	if n < MinForecastMonths {
		return Forecast{History: series}, false
	}

	var sumX, sumY float64
	for i, m := range series {
		sumX += float64(i)
		sumY += m.Total.Units()
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxy, sxx float64
	for i, m := range series {
		dx := float64(i) - meanX
		sxy += dx * (m.Total.Units() - meanY)
		sxx += dx * dx
	}
	// sxx > 0 whenever n >= 2 since positions are distinct.
	slope := sxy / sxx
	intercept := meanY - slope*meanX

	return Forecast{
		Prediction: intercept + slope*float64(n),
		Slope:      slope,
		Intercept:  intercept,
		History:    series,
	}, true
}
