package fourier

import "math"

// Direct is the O(N²) reference transform.
type Direct struct {
	n   int
	cos []float64
	sin []float64
}

// NewDirect returns a direct transform of size n. The size must be a
// positive power of two so that Direct is interchangeable with [Radix2].
func NewDirect(n int) (*Direct, error) {
	if err := checkSize(n); err != nil {
		return nil, err
	}
	d := &Direct{
		n:   n,
		cos: make([]float64, n),
		sin: make([]float64, n),
	}
	for t := range n {
		angle := 2 * math.Pi * float64(t) / float64(n)
		d.cos[t] = math.Cos(angle)
		d.sin[t] = math.Sin(angle)
	}
	return d, nil
}

// Size implements [Transform].
func (d *Direct) Size() int { return d.n }

// Forward implements [Transform].
func (d *Direct) Forward(frame []float64) ([]float64, error) {
	if err := checkInput(d.n, frame); err != nil {
		return nil, err
	}
	out := make([]float64, d.n)
	for k := range d.n {
		var re, im float64
		// idx tracks (j*k) mod n without overflow.
		idx := 0
		for j := range d.n {
			re += frame[j] * d.cos[idx]
			im -= frame[j] * d.sin[idx]
			idx += k
			if idx >= d.n {
				idx -= d.n
			}
		}
		out[k] = math.Hypot(re, im)
	}
	return out, nil
}
