// Package audio is the PCM plumbing in front of the detector: decoding WAV
// uploads into mono float samples, converting int16 streams between sample
// rates and channel layouts, and regrouping streamed bytes into the fixed
// frame size a VAD session expects.
//
// Decoding compressed formats is out of scope; callers must supply PCM WAV
// or raw int16 PCM.
package audio
