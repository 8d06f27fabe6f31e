package health

import (
	"context"
	"fmt"
	"math"

	"github.com/MrWong99/gaussvad/pkg/dsp/fourier"
)

// probeTolerance is the largest relative magnitude error accepted between the
// serving transform and the direct reference.
const probeTolerance = 1e-6

// TransformCheck returns a [Checker] named "transform" that runs the
// transform returned by current on a fixed probe frame and compares its
// magnitudes with a direct DFT of the same size. current is called on every
// probe so a hot-swapped detector is checked too.
func TransformCheck(current func() fourier.Transform) Checker {
	return Checker{
		Name: "transform",
		Check: func(ctx context.Context) error {
			t := current()
			if t == nil {
				return fmt.Errorf("no transform configured")
			}
			ref, err := fourier.NewDirect(t.Size())
			if err != nil {
				return err
			}
			return compareTransforms(ctx, ref, t)
		},
	}
}

func compareTransforms(ctx context.Context, ref, got fourier.Transform) error {
	frame := probeFrame(ref.Size())

	want, err := ref.Forward(frame)
	if err != nil {
		return fmt.Errorf("reference transform: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	have, err := got.Forward(frame)
	if err != nil {
		return fmt.Errorf("serving transform: %w", err)
	}
	if len(have) != len(want) {
		return fmt.Errorf("serving transform returned %d magnitudes, want %d", len(have), len(want))
	}

	// Errors are scaled by the largest magnitude so near-zero bins do not
	// dominate.
	peak := 0.0
	for _, v := range want {
		peak = math.Max(peak, v)
	}
	for k := range want {
		if d := math.Abs(have[k] - want[k]); d > probeTolerance*peak {
			return fmt.Errorf("bin %d: magnitude %.6g differs from reference %.6g", k, have[k], want[k])
		}
	}
	return nil
}

// probeFrame is two incommensurate sinusoids plus a DC offset.
func probeFrame(n int) []float64 {
	f := make([]float64, n)
	for i := range f {
		x := float64(i) / float64(n)
		f[i] = 0.25 + math.Sin(2*math.Pi*3*x) + 0.5*math.Cos(2*math.Pi*7.5*x)
	}
	return f
}
