// Package buffer implements a bounded, single-producer/single-consumer
// byte FIFO exposing direct read/write windows so that async I/O can
// scatter/gather into and out of it without an intermediate copy.
package buffer

import "errors"

// ErrInsufficientSpace is returned by Write when the write window is
// smaller than the caller's payload.
var ErrInsufficientSpace = errors.New("buffer: insufficient contiguous space")

// ErrInsufficientData is returned by Read when the read window holds
// fewer bytes than the caller requested.
var ErrInsufficientData = errors.New("buffer: insufficient data")

// LinearBuffer is a fixed-capacity byte buffer with two monotonic
// indices, read <= write <= capacity. It never grows and never
// compacts mid-stream: once the write index reaches capacity, the
// buffer must be fully drained (read == write) before more can be
// written, at which point both indices reset to zero.
//
// A LinearBuffer is not safe for concurrent use; it is meant to be
// affinitized to a single goroutine (or guarded externally, as
// TcpConnection does for its outbound buffer).
type LinearBuffer struct {
	buf   []byte
	read  int
	write int
}

// NewLinearBuffer allocates a LinearBuffer with the given capacity. A
// capacity of zero is permitted; such a buffer is permanently both
// empty and full.
func NewLinearBuffer(capacity int) *LinearBuffer {
	return &LinearBuffer{
		buf: make([]byte, capacity),
	}
}

// Capacity returns the buffer's fixed capacity.
func (b *LinearBuffer) Capacity() int {
	return len(b.buf)
}

// WriteWindow returns the writable slice at the current write index.
// Its length is capacity-write; it never fails, but may be empty when
// the buffer is full.
func (b *LinearBuffer) WriteWindow() []byte {
	return b.buf[b.write:]
}

// Commit advances the write index by n, as if n bytes had just been
// written into the slice returned by WriteWindow. It fails, leaving
// state unchanged, if n is negative or exceeds the current write
// window's length.
func (b *LinearBuffer) Commit(n int) bool {
	if n < 0 || n > len(b.buf)-b.write {
		return false
	}
	b.write += n
	return true
}

// ReadWindow returns the readable slice between read and write. Its
// length is write-read; it is nil when the buffer is empty.
func (b *LinearBuffer) ReadWindow() []byte {
	if b.read == b.write {
		return nil
	}
	return b.buf[b.read:b.write]
}

// Consume advances the read index by n, as if n bytes had just been
// drained from the slice returned by ReadWindow. If the buffer becomes
// empty as a result, both indices reset to zero, restoring the full
// write window without a memmove. It fails, leaving state unchanged,
// if n is negative or exceeds the current read window's length.
func (b *LinearBuffer) Consume(n int) bool {
	if n < 0 || n > b.write-b.read {
		return false
	}
	b.read += n
	if b.read == b.write {
		b.read = 0
		b.write = 0
	}
	return true
}

// Clear resets the buffer to empty, discarding any unread bytes.
func (b *LinearBuffer) Clear() {
	b.read = 0
	b.write = 0
}

// IsEmpty reports whether the buffer currently holds no unread bytes.
func (b *LinearBuffer) IsEmpty() bool {
	return b.read == b.write
}

// IsFull reports whether the buffer's write window is exhausted.
func (b *LinearBuffer) IsFull() bool {
	return b.write == len(b.buf)
}

// AvailableData returns the number of unread bytes.
func (b *LinearBuffer) AvailableData() int {
	return b.write - b.read
}

// AvailableSpace returns the number of bytes that may still be
// written before the buffer is full.
func (b *LinearBuffer) AvailableSpace() int {
	return len(b.buf) - b.write
}

// Push is a convenience wrapper copying data into the write window and
// committing it in one step. It fails without effect if data is empty
// or does not fit in the current write window.
func (b *LinearBuffer) Push(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	window := b.WriteWindow()
	if len(data) > len(window) {
		return false
	}

	copy(window, data)
	return b.Commit(len(data))
}

// Write implements the wire.Writer adapter contract directly against
// the write window: it fails atomically, without partial writes, when
// p does not fit contiguously.
func (b *LinearBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !b.Push(p) {
		return 0, ErrInsufficientSpace
	}
	return len(p), nil
}

// Read implements the wire.Reader adapter contract directly against
// the read window: it fails atomically when fewer than len(p) bytes
// are available, matching the codec's expectation that a short read
// never partially populates p.
func (b *LinearBuffer) Read(p []byte) (int, error) {
	window := b.ReadWindow()
	if len(p) > len(window) {
		return 0, ErrInsufficientData
	}
	copy(p, window[:len(p)])
	b.Consume(len(p))
	return len(p), nil
}
