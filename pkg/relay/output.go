package relay

import "bytes"

// outputBuffer accumulates child stdout in arrival order. A positive max caps
// the number of bytes kept; writes past the cap fail with ErrOutputLimit.
type outputBuffer struct {
	buf bytes.Buffer
	max int64
}

func newOutputBuffer(max int64) *outputBuffer {
	return &outputBuffer{max: max}
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	if b.max > 0 {
		room := b.max - int64(b.buf.Len())
		if int64(len(p)) > room {
			n, _ := b.buf.Write(p[:max(room, 0)])
			return n, ErrOutputLimit
		}
	}
	return b.buf.Write(p)
}

func (b *outputBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

func (b *outputBuffer) Len() int {
	return b.buf.Len()
}
