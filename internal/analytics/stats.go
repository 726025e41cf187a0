package analytics

import "math"

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleVariance uses the n-1 denominator; series of length <= 1 have
// variance 0.
func sampleVariance(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values)-1)
}

func sampleStdev(values []float64) float64 {
	return math.Sqrt(sampleVariance(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
