package fourier

import "math"

// Radix2 is an iterative radix-2 decimation-in-time Cooley-Tukey transform.
// The bit-reversal permutation and twiddle factors are computed once.
type Radix2 struct {
	n       int
	rev     []int
	twiddle []complex128 // exp(-2*pi*i*k/n) for k in [0, n/2)
}

// NewRadix2 returns a fast transform of size n, which must be a positive
// power of two.
func NewRadix2(n int) (*Radix2, error) {
	if err := checkSize(n); err != nil {
		return nil, err
	}
	r := &Radix2{
		n:       n,
		rev:     make([]int, n),
		twiddle: make([]complex128, n/2),
	}

	bits := 0
	for 1<<bits < n {
		bits++
	}
	for i := range n {
		r.rev[i] = reverseBits(i, bits)
	}
	for k := range n / 2 {
		angle := -2 * math.Pi * float64(k) / float64(n)
		r.twiddle[k] = complex(math.Cos(angle), math.Sin(angle))
	}
	return r, nil
}

func reverseBits(v, bits int) int {
	out := 0
	for range bits {
		out = out<<1 | v&1
		v >>= 1
	}
	return out
}

// Size implements [Transform].
func (r *Radix2) Size() int { return r.n }

// Forward implements [Transform].
func (r *Radix2) Forward(frame []float64) ([]float64, error) {
	x, err := r.Coefficients(frame)
	if err != nil {
		return nil, err
	}
	out := make([]float64, r.n)
	for k, c := range x {
		out[k] = math.Hypot(real(c), imag(c))
	}
	return out, nil
}

// Coefficients returns the complex spectrum X[k] for k in [0, N). It fails
// with [dsp.ErrInputSizeMismatch] unless len(frame) == Size().
func (r *Radix2) Coefficients(frame []float64) ([]complex128, error) {
	if err := checkInput(r.n, frame); err != nil {
		return nil, err
	}
	n := r.n
	x := make([]complex128, n)
	for i, j := range r.rev {
		x[j] = complex(frame[i], 0)
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := n / size
		for start := 0; start < n; start += size {
			for k := range half {
				t := r.twiddle[k*step] * x[start+k+half]
				u := x[start+k]
				x[start+k] = u + t
				x[start+k+half] = u - t
			}
		}
	}
	return x, nil
}
