package preview

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxPooledBuffer keeps oversized buffers out of the pool.
const maxPooledBuffer = 8 << 20

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func getBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

func putBuffer(b *bytes.Buffer) {
	if b.Cap() > maxPooledBuffer {
		return
	}
	bufPool.Put(b)
}

// Frame is one fetched preview image. Its bytes belong to the loop and
// are only valid until the loop replaces or clears it.
type Frame struct {
	ID          uuid.UUID
	Gen         uint64
	Seq         uint64
	ContentType string
	FetchedAt   time.Time

	buf *bytes.Buffer
}

func newFrame(buf *bytes.Buffer, contentType string, gen, seq uint64, at time.Time) *Frame {
	return &Frame{
		ID:          uuid.New(),
		Gen:         gen,
		Seq:         seq,
		ContentType: contentType,
		FetchedAt:   at,
		buf:         buf,
	}
}

// Bytes returns the image payload, or nil once released.
func (f *Frame) Bytes() []byte {
	if f.buf == nil {
		return nil
	}
	return f.buf.Bytes()
}

// Len returns the payload size.
func (f *Frame) Len() int {
	if f.buf == nil {
		return 0
	}
	return f.buf.Len()
}

// Released reports whether the frame's buffer went back to the pool.
func (f *Frame) Released() bool {
	return f.buf == nil
}

func (f *Frame) release() {
	if f.buf == nil {
		return
	}
	putBuffer(f.buf)
	f.buf = nil
}

// Slot owns at most one live frame. Replace and Clear are the only places
// a frame is released. Not safe for concurrent use; the loop guards it.
type Slot struct {
	cur *Frame
}

// Replace releases the held frame, then takes ownership of f.
func (s *Slot) Replace(f *Frame) {
	if s.cur != nil {
		s.cur.release()
	}
	s.cur = f
}

// Clear releases the held frame.
func (s *Slot) Clear() {
	if s.cur != nil {
		s.cur.release()
		s.cur = nil
	}
}

// Current returns the held frame or nil.
func (s *Slot) Current() *Frame {
	return s.cur
}

// Seq returns the sequence number of the held frame, 0 when empty.
func (s *Slot) Seq() uint64 {
	if s.cur == nil {
		return 0
	}
	return s.cur.Seq
}
