package session

import "bytes"

const escapeIntroducer = 0x1b

// outputBuffer holds the tail of a child's output for snapshot replay on
// attach. It is bounded: once the limit is exceeded the front is trimmed,
// with the trim point chosen so a snapshot never begins in the middle of
// a terminal escape sequence.
type outputBuffer struct {
	data  []byte
	limit int
}

func newOutputBuffer(limit int) *outputBuffer {
	return &outputBuffer{limit: limit}
}

func (b *outputBuffer) Append(p []byte) {
	b.data = append(b.data, p...)
	if len(b.data) <= b.limit {
		return
	}
	b.data = b.data[trimPoint(b.data, len(b.data)-b.limit):]
}

func (b *outputBuffer) Snapshot() string {
	return string(b.data)
}

func (b *outputBuffer) Len() int {
	return len(b.data)
}

// trimPoint picks the index to trim the buffer front to, given the naive
// byte-offset cutoff. Preference order: the next escape introducer at or
// after the cutoff, so the retained tail starts on a sequence boundary;
// else just past the next newline; else just past the next carriage
// return; else the hard cutoff itself.
func trimPoint(data []byte, cutoff int) int {
	tail := data[cutoff:]
	if i := bytes.IndexByte(tail, escapeIntroducer); i >= 0 {
		return cutoff + i
	}
	if i := bytes.IndexByte(tail, '\n'); i >= 0 {
		return cutoff + i + 1
	}
	if i := bytes.IndexByte(tail, '\r'); i >= 0 {
		return cutoff + i + 1
	}
	return cutoff
}
