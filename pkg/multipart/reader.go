// Package multipart implements the streaming multipart/form-data parser
// (spec.md §4.5) and the form-parsing layer over it (spec.md §4.6).
// Grounded directly on original_source/mhttp/form.py: FormReader's
// BetweenFields/InField/FieldEnd state machine, FormMetadata's
// name/filename extraction and textness-based filename synthesis, and
// _RelativeReadStream's bounded, lazily-seeking view become Reader,
// FieldMetadata, and RelativeReadStream below.
package multipart

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/caldervale/go-rawhttpd/pkg/fifobuf"
	"github.com/caldervale/go-rawhttpd/pkg/header"
	"github.com/caldervale/go-rawhttpd/pkg/httperr"
)

// ReadAll requests Read to return the whole remainder of the current
// field, mirroring form.py's read(bytes_num=-1) default.
const ReadAll = -1

// Reader is a forward-only, boundary-delimited reader over a single
// underlying stream, yielding one field at a time. Not safe for
// concurrent use.
type Reader struct {
	inner          io.Reader
	buf            *fifobuf.Buffer
	boundary       []byte
	boundaryWithNL []byte
	fieldEnd       bool
	initialized    bool
	innerPos       int64
}

// NewReader wraps inner, a stream positioned at the very start of the
// multipart body, with boundary (without the leading "--").
func NewReader(inner io.Reader, boundary string) *Reader {
	b := []byte("--" + boundary)
	return &Reader{
		inner:          inner,
		buf:            fifobuf.New(256),
		boundary:       b,
		boundaryWithNL: append([]byte("\r\n"), b...),
		fieldEnd:       true,
	}
}

// Close closes the underlying stream if it is an io.Closer.
func (r *Reader) Close() error {
	if c, ok := r.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Position reports the reader's logical offset into the underlying
// stream: bytes consumed from inner, minus whatever sits in the pushback
// buffer ahead of the caller. Used by ParseForm to record a file field's
// start offset for later bounded re-opening.
func (r *Reader) Position() int64 {
	return r.innerPos - int64(r.buf.Len())
}

// rawRead returns exactly the requested n bytes when available (buffered
// first, then from inner), or fewer at EOF — never an error for a short
// read, matching form.py's read()/readline() which treat EOF as "no more
// data" rather than a failure.
func (r *Reader) rawRead(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	popped := r.buf.Pop(n)
	if len(popped) == n {
		return popped, nil
	}
	need := n - len(popped)
	tmp := make([]byte, need)
	got, err := io.ReadFull(r.inner, tmp)
	r.innerPos += int64(got)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return append(popped, tmp[:got]...), nil
}

func (r *Reader) readLineRaw() ([]byte, error) {
	line := r.buf.PopLine()
	if len(line) == 0 || line[len(line)-1] != '\n' {
		rest, err := r.readLineFromInner()
		if err != nil {
			return nil, err
		}
		line = append(line, rest...)
	}
	if n := len(line); n >= 2 {
		line = line[:n-2]
	} else {
		line = line[:0]
	}
	return line, nil
}

func (r *Reader) readLineFromInner() ([]byte, error) {
	var line []byte
	b := make([]byte, 1)
	for {
		n, err := r.inner.Read(b)
		if n > 0 {
			r.innerPos++
			line = append(line, b[0])
			if b[0] == '\n' {
				return line, nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return line, nil
			}
			return nil, err
		}
	}
}

// Read returns up to n bytes of the current field (ReadAll for the whole
// remainder), stopping exactly at the next boundary marker. Sets the
// reader to FieldEnd when the boundary is found. Scans across a sliding
// window of n+len(boundaryWithNL) bytes so a boundary straddling two reads
// is always detected, per spec.md §4.5 and §9's pushback-window note.
func (r *Reader) Read(n int) ([]byte, error) {
	if r.fieldEnd {
		return nil, nil
	}
	var t []byte
	for {
		readSize := n
		if n == ReadAll {
			readSize = 1024
		}
		a, err := r.rawRead(readSize)
		if err != nil {
			return nil, err
		}
		buf, err := r.rawRead(len(r.boundaryWithNL))
		if err != nil {
			return nil, err
		}
		total := append(append([]byte{}, a...), buf...)
		if idx := bytes.Index(total, r.boundaryWithNL); idx != -1 {
			r.fieldEnd = true
			rest := total[:idx]
			forNext := total[idx+len(r.boundaryWithNL):]
			r.buf.Push(forNext)
			if len(t) > 0 {
				return append(t, rest...), nil
			}
			return rest, nil
		}
		r.buf.Push(buf)
		if n != ReadAll {
			return a, nil
		}
		if len(a) == 0 {
			// Underlying stream exhausted without finding the closing
			// boundary — a malformed multipart body; stop rather than
			// loop forever.
			return t, nil
		}
		t = append(t, a...)
	}
}

// ReadLine returns the next line of the current field, up to but not
// including its CRLF. If the line equals the bare boundary marker, sets
// FieldEnd.
func (r *Reader) ReadLine() ([]byte, error) {
	if r.fieldEnd {
		return nil, nil
	}
	line, err := r.readLineRaw()
	if err != nil {
		return nil, err
	}
	if bytes.Equal(line, r.boundary) {
		r.fieldEnd = true
	}
	return line, nil
}

func (r *Reader) skipToEnd() error {
	for {
		data, err := r.Read(1024)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
	}
}

// CopyField streams the current field's remaining bytes to destPath.
func (r *Reader) CopyField(destPath string) error {
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()
	for {
		data, err := r.Read(1024)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		if _, err := f.Write(data); err != nil {
			return err
		}
	}
}

// NextField skips any unread remainder of the current field, then parses
// the next field's headers. Returns nil, nil once the closing boundary
// ("--<boundary>--") is reached.
func (r *Reader) NextField() (*FieldMetadata, error) {
	if !r.initialized {
		if _, err := r.rawRead(len(r.boundary)); err != nil {
			return nil, err
		}
		r.initialized = true
	}
	if !r.fieldEnd {
		if err := r.skipToEnd(); err != nil {
			return nil, err
		}
	}

	lead, err := r.rawRead(2)
	if err != nil {
		return nil, err
	}
	if len(lead) == 0 || string(lead) == "--" {
		return nil, nil
	}

	headers := header.New()
	for {
		line, err := r.readLineRaw()
		if err != nil {
			return nil, err
		}
		if bytes.Equal(line, r.boundary) {
			return nil, httperr.NewBadRequest("multipart.next_field", "bad form-data format")
		}
		if len(line) == 0 {
			break
		}
		idx := bytes.IndexByte(line, ':')
		if idx < 0 {
			return nil, httperr.NewBadRequest("multipart.next_field", "bad form-data header format")
		}
		key := strings.TrimSpace(string(line[:idx]))
		value := strings.TrimSpace(string(line[idx+1:]))
		headers.Set(key, value)
	}

	r.fieldEnd = false
	return newFieldMetadata(headers)
}
