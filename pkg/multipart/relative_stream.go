package multipart

import (
	"fmt"
	"io"
)

// RelativeReadStream is a bounded, lazily-seeking view over an inner
// io.ReadSeeker, exposing only the window [offset, offset+length). The
// first Read/Seek call seeks the inner stream to offset; spec.md §4.6
// requires this laziness so a FormFile backed by an unread field never
// touches the underlying stream until the caller actually opens it.
// Grounded on original_source/mhttp/form.py's _RelativeReadStream.
type RelativeReadStream struct {
	inner       io.ReadSeeker
	offset      int64
	length      int64
	pos         int64
	initialized bool
}

// NewRelativeReadStream wraps inner with the window [offset, offset+length).
func NewRelativeReadStream(inner io.ReadSeeker, offset, length int64) *RelativeReadStream {
	return &RelativeReadStream{inner: inner, offset: offset, length: length}
}

func (s *RelativeReadStream) ensureInit() error {
	if s.initialized {
		return nil
	}
	if _, err := s.inner.Seek(s.offset, io.SeekStart); err != nil {
		return err
	}
	s.initialized = true
	return nil
}

// Read never returns bytes past the window's length.
func (s *RelativeReadStream) Read(p []byte) (int, error) {
	if err := s.ensureInit(); err != nil {
		return 0, err
	}
	remaining := s.length - s.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := s.inner.Read(p)
	s.pos += int64(n)
	return n, err
}

// Seek repositions within the window; offsets are clamped to
// [0, length], mirroring _RelativeReadStream.seek's min() clamping.
func (s *RelativeReadStream) Seek(offset int64, whence int) (int64, error) {
	if err := s.ensureInit(); err != nil {
		return 0, err
	}
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = s.pos + offset
	case io.SeekEnd:
		newPos = s.length + offset
	default:
		return 0, fmt.Errorf("multipart: invalid whence %d", whence)
	}
	if newPos < 0 {
		newPos = 0
	}
	if newPos > s.length {
		newPos = s.length
	}
	if _, err := s.inner.Seek(s.offset+newPos, io.SeekStart); err != nil {
		return 0, err
	}
	s.pos = newPos
	return newPos, nil
}

// Close closes the inner stream if it is an io.Closer.
func (s *RelativeReadStream) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
