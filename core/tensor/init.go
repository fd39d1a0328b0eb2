package tensor

import "math/rand"

// UniformInit fills data with samples from U(low, high).
func UniformInit(rng *rand.Rand, data []float64, low, high float64) {
	span := high - low
	for i := range data {
		data[i] = low + rng.Float64()*span
	}
}

// NormalInit fills data with samples from N(0, std²).
func NormalInit(rng *rand.Rand, data []float64, std float64) {
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
}

// ZeroInit clears data.
func ZeroInit(data []float64) {
	for i := range data {
		data[i] = 0
	}
}

// FillInit sets every element to v.
func FillInit(data []float64, v float64) {
	for i := range data {
		data[i] = v
	}
}
