package audio_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/MrWong99/gaussvad/pkg/audio"
)

func pcm(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func int16s(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// ramp returns n interleaved frames where every channel carries
// start, start+step, ...
func ramp(n, channels int, start, step int16) []byte {
	s := make([]int16, 0, n*channels)
	for i := range n {
		for range channels {
			s = append(s, int16(int(start)+i*int(step)))
		}
	}
	return pcm(s...)
}

func TestFormat_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		f    audio.Format
		want string
	}{
		{audio.Format{SampleRate: 16000, Channels: 1}, "16000Hz mono"},
		{audio.Format{SampleRate: 48000, Channels: 2}, "48000Hz stereo"},
		{audio.Format{SampleRate: 44100, Channels: 6}, "44100Hz 6ch"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.f, got, tt.want)
		}
	}
}

func TestFormatConverter_Passthrough(t *testing.T) {
	t.Parallel()
	c := audio.NewFormatConverter(audio.Format{SampleRate: 16000, Channels: 1}, 16000)
	if !c.Passthrough() {
		t.Fatal("mono at the target rate should pass through")
	}
	in := pcm(1, -2, 3, -4)
	if got := c.Convert(in); !bytes.Equal(got, in) {
		t.Errorf("Convert = %v, want input unchanged", int16s(got))
	}
}

func TestFormatConverter_CarriesPartialFrames(t *testing.T) {
	t.Parallel()
	c := audio.NewFormatConverter(audio.Format{SampleRate: 16000, Channels: 2}, 16000)
	if c.Passthrough() {
		t.Fatal("stereo input must not pass through")
	}

	// L=100,R=300 | L=-100,R=-300 split in the middle of a sample.
	all := pcm(100, 300, -100, -300)
	var got []int16
	for _, piece := range [][]byte{all[:3], all[3:6], all[6:]} {
		got = append(got, int16s(c.Convert(piece))...)
	}
	want := []int16{200, -200}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFormatConverter_Downmix(t *testing.T) {
	t.Parallel()
	c := audio.NewFormatConverter(audio.Format{SampleRate: 8000, Channels: 2}, 8000)
	got := int16s(c.Convert(pcm(1000, -1000, 32767, 32767, -32768, -32768)))
	want := []int16{0, 32767, -32768}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFormatConverter_Resample(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		src      audio.Format
		dstRate  int
		frames   int
		wantSize int
	}{
		{"48k stereo to 16k", audio.Format{SampleRate: 48000, Channels: 2}, 16000, 960, 320},
		{"48k mono to 16k", audio.Format{SampleRate: 48000, Channels: 1}, 16000, 960, 320},
		{"8k mono to 16k", audio.Format{SampleRate: 8000, Channels: 1}, 16000, 160, 318},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := audio.NewFormatConverter(tt.src, tt.dstRate)
			got := int16s(c.Convert(ramp(tt.frames, tt.src.Channels, 0, 30)))
			if len(got) != tt.wantSize {
				t.Fatalf("got %d samples, want %d", len(got), tt.wantSize)
			}
			// A linear ramp stays linear under linear interpolation.
			ratio := float64(tt.src.SampleRate) / float64(tt.dstRate)
			for i, v := range got {
				want := 30 * float64(i) * ratio
				if math.Abs(float64(v)-want) > 1 {
					t.Fatalf("sample %d = %d, want %.1f", i, v, want)
				}
			}
		})
	}
}

// Converting a stream in arbitrary pieces must equal converting it whole.
func TestFormatConverter_ChunkingInvariant(t *testing.T) {
	t.Parallel()
	src := audio.Format{SampleRate: 44100, Channels: 2}
	stream := ramp(4410, 2, -20000, 9)

	whole := audio.NewFormatConverter(src, 16000).Convert(stream)

	pieces := audio.NewFormatConverter(src, 16000)
	var got []byte
	for off, size := 0, 1; off < len(stream); size = size*3 + 1 {
		end := min(off+size, len(stream))
		got = append(got, pieces.Convert(stream[off:end])...)
		off = end
	}

	if !bytes.Equal(got, whole) {
		a, b := int16s(got), int16s(whole)
		t.Fatalf("piecewise conversion differs: %d vs %d samples (first %v / %v)", len(a), len(b), a[:min(4, len(a))], b[:min(4, len(b))])
	}
}
