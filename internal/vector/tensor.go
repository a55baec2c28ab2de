package vector

import (
	"errors"
	"fmt"
)

// ErrShape indicates a tensor whose dims do not describe its data.
var ErrShape = errors.New("unexpected tensor shape")

// Tensor is a per-token hidden-state output of shape [1, T, D] stored as a
// flat row-major buffer. Token index varies slower than dimension index.
type Tensor struct {
	Data []float32
	Dims []int
}

// NewTensor validates dims against data and returns a Tensor.
//
// Accepted shapes are [1, T, D] and [T, D]. T and D must be at least 1 and
// T*D must equal len(data).
func NewTensor(data []float32, dims []int) (Tensor, error) {
	t := Tensor{Data: data, Dims: dims}
	if _, _, err := t.Shape(); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// Shape returns the token count T and hidden dimension D.
func (t Tensor) Shape() (tokens, dim int, err error) {
	switch len(t.Dims) {
	case 3:
		if t.Dims[0] != 1 {
			return 0, 0, fmt.Errorf("%w: batch dimension %d, want 1", ErrShape, t.Dims[0])
		}
		tokens, dim = t.Dims[1], t.Dims[2]
	case 2:
		tokens, dim = t.Dims[0], t.Dims[1]
	default:
		return 0, 0, fmt.Errorf("%w: dims %v", ErrShape, t.Dims)
	}
	if tokens < 1 || dim < 1 {
		return 0, 0, fmt.Errorf("%w: dims %v", ErrShape, t.Dims)
	}
	if tokens*dim != len(t.Data) {
		return 0, 0, fmt.Errorf("%w: dims %v do not match %d values", ErrShape, t.Dims, len(t.Data))
	}
	return tokens, dim, nil
}
