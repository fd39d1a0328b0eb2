package tensor

import "fmt"

// FeatureMap is a dense NCHW float64 tensor: N samples, C channels, H×W
// spatial grid. Element (n, c, h, w) lives at
// Data[((n*C+c)*H+h)*W+w].
type FeatureMap struct {
	N, C, H, W int
	Data       []float64
}

// NewFeatureMap allocates a zeroed N×C×H×W map.
func NewFeatureMap(n, c, h, w int) *FeatureMap {
	return &FeatureMap{N: n, C: c, H: h, W: w, Data: make([]float64, n*c*h*w)}
}

// NewFeatureMapFrom wraps an existing backing slice without copying.
func NewFeatureMapFrom(n, c, h, w int, data []float64) *FeatureMap {
	if len(data) != n*c*h*w {
		panic(fmt.Sprintf("tensor: backing slice has length %d, want %d", len(data), n*c*h*w))
	}
	return &FeatureMap{N: n, C: c, H: h, W: w, Data: data}
}

// At returns element (n, c, h, w).
func (f *FeatureMap) At(n, c, h, w int) float64 {
	return f.Data[((n*f.C+c)*f.H+h)*f.W+w]
}

// Set assigns element (n, c, h, w).
func (f *FeatureMap) Set(n, c, h, w int, v float64) {
	f.Data[((n*f.C+c)*f.H+h)*f.W+w] = v
}

// Channel returns the H*W plane of sample n, channel c, aliasing storage.
func (f *FeatureMap) Channel(n, c int) []float64 {
	plane := f.H * f.W
	start := (n*f.C + c) * plane
	return f.Data[start : start+plane]
}

// Sample returns the C*H*W block of sample n, aliasing storage.
func (f *FeatureMap) Sample(n int) []float64 {
	block := f.C * f.H * f.W
	return f.Data[n*block : (n+1)*block]
}

// Clone returns a deep copy.
func (f *FeatureMap) Clone() *FeatureMap {
	out := NewFeatureMap(f.N, f.C, f.H, f.W)
	copy(out.Data, f.Data)
	return out
}

// ReLUInPlace clamps negative entries to zero.
func (f *FeatureMap) ReLUInPlace() {
	for i, v := range f.Data {
		if v < 0 {
			f.Data[i] = 0
		}
	}
}

// AddInPlace accumulates other into f elementwise. Shapes must match.
func (f *FeatureMap) AddInPlace(other *FeatureMap) {
	for i, v := range other.Data {
		f.Data[i] += v
	}
}
