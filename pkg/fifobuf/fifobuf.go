// Package fifobuf provides a growable FIFO byte buffer used to stage data
// read from or about to be written to a socket.
package fifobuf

import "bytes"

const defaultInitSize = 1024

// Buffer is a FIFO byte queue backed by a single resizable array with a
// bottom and top cursor. Pushes append at top; pops/peeks read from bottom.
//
// Not safe for concurrent use; callers serialize access (one connection,
// one goroutine).
type Buffer struct {
	buf    []byte
	bottom int
	top    int
}

// New returns a Buffer with the given initial capacity. A non-positive
// size falls back to a 1024-byte initial array.
func New(initSize int) *Buffer {
	if initSize <= 0 {
		initSize = defaultInitSize
	}
	return &Buffer{buf: make([]byte, initSize)}
}

// Len returns the number of buffered, unread bytes.
func (b *Buffer) Len() int {
	return b.top - b.bottom
}

// Empty reports whether the buffer holds no unread bytes.
func (b *Buffer) Empty() bool {
	return b.Len() == 0
}

// Push appends data to the buffer, growing or compacting the backing
// array as needed.
func (b *Buffer) Push(data []byte) {
	if len(data) == 0 {
		return
	}
	needed := len(data) + b.Len()
	if needed > len(b.buf) {
		b.resize(highestPowerOfTwo(needed))
	} else if len(data)+b.top > len(b.buf) {
		b.reposition()
	}
	b.top += copy(b.buf[b.top:b.top+len(data)], data)
}

// Peek returns up to n bytes from the bottom of the buffer without
// removing them. The returned slice aliases the internal array and is
// only valid until the next Push/Pop/Peek/resize.
func (b *Buffer) Peek(n int) []byte {
	end := b.bottom + n
	if end > b.top {
		end = b.top
	}
	return b.buf[b.bottom:end]
}

// Pop removes and returns up to n bytes from the bottom of the buffer.
func (b *Buffer) Pop(n int) []byte {
	res := b.Peek(n)
	out := make([]byte, len(res))
	copy(out, res)
	b.bottom += len(res)
	if b.bottom == b.top {
		b.bottom, b.top = 0, 0
	}
	return out
}

// PeekAll returns every buffered byte without removing them.
func (b *Buffer) PeekAll() []byte {
	return b.Peek(b.Len())
}

// PopAll removes and returns every buffered byte.
func (b *Buffer) PopAll() []byte {
	return b.Pop(b.Len())
}

// PopUntil removes and returns bytes from the bottom through and
// including the first occurrence of needle. If needle is not found, it
// returns (and removes) every buffered byte.
func (b *Buffer) PopUntil(needle []byte) []byte {
	idx := bytes.Index(b.buf[b.bottom:b.top], needle)
	if idx < 0 {
		return b.PopAll()
	}
	end := b.bottom + idx + len(needle)
	res := make([]byte, end-b.bottom)
	copy(res, b.buf[b.bottom:end])
	b.bottom = end
	if b.bottom == b.top {
		b.bottom, b.top = 0, 0
	}
	return res
}

// PopLine removes and returns bytes through and including the first '\n'.
// If no '\n' is buffered, it returns every buffered byte.
func (b *Buffer) PopLine() []byte {
	return b.PopUntil([]byte{'\n'})
}

// reposition slides unread bytes to the start of the backing array.
func (b *Buffer) reposition() {
	length := b.Len()
	copy(b.buf[0:length], b.buf[b.bottom:b.top])
	b.bottom, b.top = 0, length
}

// resize replaces the backing array with one of the given size,
// preserving unread bytes at the start.
func (b *Buffer) resize(size int) {
	length := b.Len()
	newBuf := make([]byte, size)
	copy(newBuf, b.buf[b.bottom:b.top])
	b.buf = newBuf
	b.bottom, b.top = 0, length
}

// highestPowerOfTwo returns the smallest power of two >= n.
func highestPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
