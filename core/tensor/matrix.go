package tensor

import (
	"fmt"
	"math"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// Matrix is a dense row-major float64 matrix. Data has length Rows*Cols and
// row i occupies Data[i*Cols : (i+1)*Cols].
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

// NewMatrix allocates a zeroed Rows×Cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

// NewMatrixFrom wraps an existing backing slice without copying.
// len(data) must equal rows*cols.
func NewMatrixFrom(rows, cols int, data []float64) *Matrix {
	if len(data) != rows*cols {
		panic(fmt.Sprintf("tensor: backing slice has length %d, want %d", len(data), rows*cols))
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}
}

// Eye returns the n×n identity matrix.
func Eye(n int) *Matrix {
	m := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		m.Data[i*n+i] = 1.0
	}
	return m
}

// At returns element (i, j).
func (m *Matrix) At(i, j int) float64 {
	return m.Data[i*m.Cols+j]
}

// Set assigns element (i, j).
func (m *Matrix) Set(i, j int, v float64) {
	m.Data[i*m.Cols+j] = v
}

// Row returns row i as a slice aliasing the matrix storage.
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := NewMatrix(m.Rows, m.Cols)
	copy(out.Data, m.Data)
	return out
}

// SliceRows returns a copy of rows [from, to).
func (m *Matrix) SliceRows(from, to int) *Matrix {
	out := NewMatrix(to-from, m.Cols)
	copy(out.Data, m.Data[from*m.Cols:to*m.Cols])
	return out
}

// ConcatRows stacks matrices vertically. All inputs must share a column count.
func ConcatRows(ms ...*Matrix) *Matrix {
	if len(ms) == 0 {
		return nil
	}
	cols := ms[0].Cols
	rows := 0
	for _, m := range ms {
		if m.Cols != cols {
			panic(fmt.Sprintf("tensor: concat column mismatch %d vs %d", m.Cols, cols))
		}
		rows += m.Rows
	}
	out := NewMatrix(rows, cols)
	offset := 0
	for _, m := range ms {
		copy(out.Data[offset:], m.Data)
		offset += len(m.Data)
	}
	return out
}

// general adapts a Matrix to the blas64 view used by Gemm.
func (m *Matrix) general() blas64.General {
	return blas64.General{Rows: m.Rows, Cols: m.Cols, Stride: m.Cols, Data: m.Data}
}

// MatMul computes a·b into a freshly allocated matrix.
func MatMul(a, b *Matrix) *Matrix {
	if a.Cols != b.Rows {
		panic(fmt.Sprintf("tensor: matmul dimension mismatch (%d×%d)·(%d×%d)", a.Rows, a.Cols, b.Rows, b.Cols))
	}
	out := NewMatrix(a.Rows, b.Cols)
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1.0, a.general(), b.general(), 0.0, out.general())
	return out
}

// MatMulInto computes a·b into out, which must be a.Rows×b.Cols.
func MatMulInto(a, b, out *Matrix) {
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1.0, a.general(), b.general(), 0.0, out.general())
}

// Transpose returns a new matrix holding m^T.
func (m *Matrix) Transpose() *Matrix {
	out := NewMatrix(m.Cols, m.Rows)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			out.Data[j*m.Rows+i] = m.Data[i*m.Cols+j]
		}
	}
	return out
}

// AddInPlace accumulates other into m elementwise.
func (m *Matrix) AddInPlace(other *Matrix) {
	vek.Add_Inplace(m.Data, other.Data)
}

// ScaleInPlace multiplies every element by s.
func (m *Matrix) ScaleInPlace(s float64) {
	vek.MulNumber_Inplace(m.Data, s)
}

// AddRowInPlace adds the vector row to every row of m.
func (m *Matrix) AddRowInPlace(row []float64) {
	for i := 0; i < m.Rows; i++ {
		vek.Add_Inplace(m.Row(i), row)
	}
}

// ReLUInPlace clamps negative entries to zero.
func (m *Matrix) ReLUInPlace() {
	for i, v := range m.Data {
		if v < 0 {
			m.Data[i] = 0
		}
	}
}

// LeakyReLUInPlace applies max(x, negSlope*x) elementwise.
func (m *Matrix) LeakyReLUInPlace(negSlope float64) {
	for i, v := range m.Data {
		if v < 0 {
			m.Data[i] = v * negSlope
		}
	}
}

// L2NormalizeRows scales each row to unit Euclidean norm, returning a new
// matrix. Zero rows are copied through unchanged.
func L2NormalizeRows(m *Matrix) *Matrix {
	out := m.Clone()
	for i := 0; i < out.Rows; i++ {
		row := out.Row(i)
		norm := math.Sqrt(vek.Dot(row, row))
		if norm > 0 {
			vek.MulNumber_Inplace(row, 1.0/norm)
		}
	}
	return out
}

// RowSums returns the vector of per-row sums.
func (m *Matrix) RowSums() []float64 {
	sums := make([]float64, m.Rows)
	for i := 0; i < m.Rows; i++ {
		var s float64
		for _, v := range m.Row(i) {
			s += v
		}
		sums[i] = s
	}
	return sums
}
