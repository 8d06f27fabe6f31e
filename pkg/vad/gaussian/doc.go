// Package gaussian implements a statistical voice activity detector based on
// a Gaussian model of short-time spectral magnitudes.
//
// The detector frames the signal, tapers each frame with a Hann window and
// takes its magnitude spectrum. The first frames are assumed to be noise only
// and give a per-bin noise power estimate. A decision-directed recursion then
// tracks the a-priori SNR of every bin, and each frame is classified by the
// average log-likelihood ratio of "speech present" against "noise only".
//
// The stages are exported individually ([EstimateNoise], [SNRTracker],
// [EstimateSNR], [FrameLogLikelihood], [Decide]) so they can be tested and
// reused in isolation; [Detector] chains them for a whole recording.
//
// Known limitation: the noise estimate trusts that the recording starts with
// silence. Speech in the lead-in is not detected as a misuse; it inflates the
// noise estimate and lowers detection accuracy for the rest of the run.
package gaussian

// Epsilon replaces zero noise powers in divisions and bounds likelihoods from
// below before taking their logarithm.
const Epsilon = 1e-10

// nonZero returns v, or [Epsilon] when v is not positive.
func nonZero(v float64) float64 {
	if v <= 0 {
		return Epsilon
	}
	return v
}
