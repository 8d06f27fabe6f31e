package audio

import "fmt"

// Format describes the sample rate and channel count of an int16 stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns e.g. "48000Hz stereo".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// FormatConverter turns an interleaved int16 stream into mono int16 PCM at
// a target rate. Sample frames split across calls are carried over, and the
// resampler keeps its phase between calls, so converting a stream in pieces
// yields the same output as converting it in one buffer.
//
// Create one per stream; a FormatConverter is not safe for concurrent use.
type FormatConverter struct {
	src     Format
	dstRate int

	// partial holds the bytes of an incomplete sample frame.
	partial []byte

	// Resampler state. Output sample i sits at source position
	// i*src/dst; consumed counts source samples seen so far and prev is
	// the last of them.
	outIdx   int64
	consumed int64
	prev     float32
}

// NewFormatConverter returns a converter from src to mono at dstRate.
// Non-positive channel counts are treated as mono.
func NewFormatConverter(src Format, dstRate int) *FormatConverter {
	if src.Channels < 1 {
		src.Channels = 1
	}
	return &FormatConverter{src: src, dstRate: dstRate}
}

// Passthrough reports whether Convert returns its input unchanged apart
// from frame alignment.
func (c *FormatConverter) Passthrough() bool {
	return c.src.Channels == 1 && (c.src.SampleRate == c.dstRate || c.src.SampleRate <= 0 || c.dstRate <= 0)
}

// Convert consumes the next piece of the stream and returns the converted
// PCM available so far. The result may be empty.
func (c *FormatConverter) Convert(pcm []byte) []byte {
	frameBytes := 2 * c.src.Channels
	if len(c.partial) > 0 {
		pcm = append(c.partial, pcm...)
		c.partial = nil
	}
	if whole := len(pcm) / frameBytes * frameBytes; whole < len(pcm) {
		c.partial = append([]byte(nil), pcm[whole:]...)
		pcm = pcm[:whole]
	}
	if c.Passthrough() || len(pcm) == 0 {
		return pcm
	}

	mono := DownmixFloat32(PCM16ToFloat32(pcm), c.src.Channels)
	if c.src.SampleRate != c.dstRate {
		mono = c.resample(mono)
	}
	return Float32ToPCM16(mono)
}

// resample linearly interpolates in at the target rate. An output sample
// is emitted once both of its neighbours have arrived.
func (c *FormatConverter) resample(in []float32) []float32 {
	buf, first := in, c.consumed
	if c.consumed > 0 {
		buf = append([]float32{c.prev}, in...)
		first--
	}
	src, dst := int64(c.src.SampleRate), int64(c.dstRate)

	out := make([]float32, 0, int64(len(in))*dst/src+1)
	for {
		pos := c.outIdx * src
		idx := pos/dst - first
		if idx+1 >= int64(len(buf)) {
			break
		}
		frac := float32(pos%dst) / float32(dst)
		out = append(out, buf[idx]*(1-frac)+buf[idx+1]*frac)
		c.outIdx++
	}

	c.consumed += int64(len(in))
	c.prev = in[len(in)-1]
	return out
}
