package vector

import "math"

// MeanPool averages the T token rows of t element-wise, producing one value
// per hidden dimension. The result does not depend on token order.
func MeanPool(t Tensor) ([]float32, error) {
	tokens, dim, err := t.Shape()
	if err != nil {
		return nil, err
	}

	// Accumulate in float64 so long sequences do not lose precision.
	sums := make([]float64, dim)
	for tok := 0; tok < tokens; tok++ {
		row := t.Data[tok*dim : (tok+1)*dim]
		for d, v := range row {
			sums[d] += float64(v)
		}
	}

	out := make([]float32, dim)
	inv := 1 / float64(tokens)
	for d, s := range sums {
		out[d] = float32(s * inv)
	}
	return out, nil
}

// L2Normalize rescales v to unit Euclidean length. A zero vector is returned
// as a zero vector.
func L2Normalize(v []float32) []float32 {
	norm := Norm(v)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// AdjustDimension pads v with trailing zeros or truncates it so that its
// length equals target.
//
// Truncation keeps the leading components and drops the rest. No projection
// is applied, so a target smaller than the native dimension loses
// information.
func AdjustDimension(v []float32, target int) []float32 {
	if target < 0 {
		target = 0
	}
	out := make([]float32, target)
	copy(out, v)
	return out
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
