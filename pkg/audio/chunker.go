package audio

// Chunker regroups a byte stream into fixed-size chunks. Audio arriving in
// arbitrary packet sizes (or resized by a [FormatConverter]) is turned into
// the exact frame size a VAD session expects.
type Chunker struct {
	size    int
	pending []byte
}

// NewChunker returns a Chunker emitting chunks of size bytes. size must be
// positive.
func NewChunker(size int) *Chunker {
	return &Chunker{size: size}
}

// Push appends data and returns every complete chunk now available. The
// returned chunks do not alias data or each other.
func (c *Chunker) Push(data []byte) [][]byte {
	c.pending = append(c.pending, data...)
	var out [][]byte
	for len(c.pending) >= c.size {
		chunk := make([]byte, c.size)
		copy(chunk, c.pending[:c.size])
		out = append(out, chunk)
		c.pending = c.pending[c.size:]
	}
	if len(c.pending) == 0 {
		c.pending = nil
	}
	return out
}

// Pending returns the number of buffered bytes not yet emitted.
func (c *Chunker) Pending() int { return len(c.pending) }

// Reset discards buffered bytes.
func (c *Chunker) Reset() { c.pending = nil }
