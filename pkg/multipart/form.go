package multipart

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/caldervale/go-rawhttpd/pkg/header"
	"github.com/caldervale/go-rawhttpd/pkg/httperr"
)

// DefaultMaxFieldMemSize bounds the total memory a form's fields may
// consume (header/name/filename bytes plus value/file bytes, summed
// across every field) before ParseForm rejects the request, per spec.md
// §4.6.
const DefaultMaxFieldMemSize = 64 * 1024

// DefaultMaxFields bounds how many fields a single form may contain, per
// spec.md §4.6, guarding against a multipart body with an unbounded number
// of tiny fields.
const DefaultMaxFields = 1000

const readFieldChunk = 1024

// CopiedFile is a file field that ParseForm streamed straight to disk,
// returned when Options.FileDestDir is set. Grounded on
// original_source/mhttp/form.py's parse_form writing uploads to a folder.
type CopiedFile struct {
	Name     string
	Filename string
	Path     string
	Headers  *header.ReadOnlyMap
	Size     int64
}

// FormFile is a file field whose bytes were left in place in the original
// request body, recorded as a byte-range plus a way to lazily reopen the
// underlying stream. Grounded on original_source/mhttp/form.py's
// _relative_stream_opener and _RelativeReadStream.
type FormFile struct {
	Name     string
	Filename string
	Headers  *header.ReadOnlyMap
	offset   int64
	length   int64
	opener   func() (io.ReadSeeker, error)
}

// OpenStream lazily reopens the underlying body and returns a bounded,
// seekable view over just this field's bytes.
func (f *FormFile) OpenStream() (io.ReadSeekCloser, error) {
	src, err := f.opener()
	if err != nil {
		return nil, err
	}
	return NewRelativeReadStream(src, f.offset, f.length), nil
}

// Size reports the file field's byte length.
func (f *FormFile) Size() int64 { return f.length }

// Form holds the parsed fields of a multipart/form-data body: plain values
// keyed by field name, and file fields either streamed to disk (Files) or
// left as lazy byte-range views (FormFiles), never both for the same
// Options.
type Form struct {
	Values    map[string][]string
	Files     map[string][]*CopiedFile
	FormFiles map[string][]*FormFile
}

// Options configures ParseForm's memory and field-count limits.
type Options struct {
	// MaxFieldMemSize bounds the form's total memory budget, shared across
	// every field rather than reset per field. 0 selects
	// DefaultMaxFieldMemSize.
	MaxFieldMemSize int64
	// MaxFields bounds the total number of fields accepted. 0 selects
	// DefaultMaxFields.
	MaxFields int
	// FileDestDir, if set, streams file fields to that directory and
	// populates Form.Files instead of Form.FormFiles.
	FileDestDir string
}

func (o Options) withDefaults() Options {
	if o.MaxFieldMemSize <= 0 {
		o.MaxFieldMemSize = DefaultMaxFieldMemSize
	}
	if o.MaxFields <= 0 {
		o.MaxFields = DefaultMaxFields
	}
	return o
}

// ParseForm drains every field of r, the field values that aren't files go
// into Form.Values, and file fields go into Form.Files (if opts.FileDestDir
// is set) or Form.FormFiles (lazy in-place views, requiring bodyOpener to
// reopen the original stream on demand). A single memory budget
// (opts.MaxFieldMemSize) is shared across every field — not reset per
// field — matching original_source/mhttp/form.py's parse_form, where one
// max_mem variable is decremented by every field's header/name/filename
// bytes plus its value or file bytes.
func ParseForm(r *Reader, bodyOpener func() (io.ReadSeeker, error), opts Options) (*Form, error) {
	opts = opts.withDefaults()
	form := &Form{
		Values:    map[string][]string{},
		Files:     map[string][]*CopiedFile{},
		FormFiles: map[string][]*FormFile{},
	}
	remaining := opts.MaxFieldMemSize

	count := 0
	for {
		meta, err := r.NextField()
		if err != nil {
			return nil, err
		}
		if meta == nil {
			break
		}
		count++
		if count > opts.MaxFields {
			return nil, httperr.NewPayloadTooLarge("multipart.parse_form", "too many form fields")
		}
		if err := chargeBudget(&remaining, fieldMetadataSize(meta)); err != nil {
			return nil, err
		}

		if meta.IsFile() {
			if opts.FileDestDir != "" {
				cf, err := copyFileField(r, meta, opts.FileDestDir, &remaining)
				if err != nil {
					return nil, err
				}
				form.Files[meta.Name] = append(form.Files[meta.Name], cf)
				continue
			}
			ff, err := relativeFileField(r, meta, bodyOpener, &remaining)
			if err != nil {
				return nil, err
			}
			form.FormFiles[meta.Name] = append(form.FormFiles[meta.Name], ff)
			continue
		}

		value, err := readFieldToLimit(r, &remaining)
		if err != nil {
			return nil, err
		}
		form.Values[meta.Name] = append(form.Values[meta.Name], string(value))
	}
	return form, nil
}

// chargeBudget decrements the form's single cumulative memory budget and
// rejects once it goes negative. Grounded on
// original_source/mhttp/form.py's parse_form, which checks "if max_mem <
// 0" once per field after decrementing the same shared variable, rather
// than re-deriving a fresh ceiling for each field.
func chargeBudget(remaining *int64, n int64) error {
	*remaining -= n
	if *remaining < 0 {
		return httperr.NewPayloadTooLarge("multipart.parse_form", "form requires too much memory")
	}
	return nil
}

// fieldMetadataSize is the header/name/filename overhead charged against
// the form's memory budget for every field, file fields included.
// Grounded on original_source/mhttp/form.py's _meta_length.
func fieldMetadataSize(meta *FieldMetadata) int64 {
	size := int64(len(meta.Name) + len(meta.Filename))
	for _, k := range meta.Headers.Keys() {
		v, _ := meta.Headers.Get(k)
		size += int64(len(k) + len(v))
	}
	return size
}

// readFieldToLimit reads the current field fully into memory, charging
// every chunk against the form's shared budget and rejecting as soon as
// it goes negative. Grounded on original_source/mhttp/form.py's
// _read_to_limit.
func readFieldToLimit(r *Reader, remaining *int64) ([]byte, error) {
	var data []byte
	for {
		chunk, err := r.Read(readFieldChunk)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return data, nil
		}
		if err := chargeBudget(remaining, int64(len(chunk))); err != nil {
			return nil, err
		}
		data = append(data, chunk...)
	}
}

// copyFileField streams the current field straight to destDir, charging
// every chunk against the form's shared budget as it's written so an
// oversized upload is rejected mid-copy rather than after an unbounded
// write to disk.
func copyFileField(r *Reader, meta *FieldMetadata, destDir string, remaining *int64) (*CopiedFile, error) {
	path := filepath.Join(destDir, uuid.NewString()+"_"+meta.Filename)
	f, err := os.Create(path)
	if err != nil {
		return nil, httperr.NewInternal("multipart.copy_file_field", err)
	}
	defer f.Close()

	var size int64
	for {
		chunk, err := r.Read(readFieldChunk)
		if err != nil {
			os.Remove(path)
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		if err := chargeBudget(remaining, int64(len(chunk))); err != nil {
			os.Remove(path)
			return nil, err
		}
		if _, err := f.Write(chunk); err != nil {
			os.Remove(path)
			return nil, httperr.NewInternal("multipart.copy_file_field", err)
		}
		size += int64(len(chunk))
	}
	return &CopiedFile{Name: meta.Name, Filename: meta.Filename, Path: path, Headers: meta.Headers, Size: size}, nil
}

// relativeFileField records the field's byte range within the body
// without copying it anywhere, still bounding how many bytes it may span
// by draining it through the same chargeBudget accounting used for plain
// values — spec.md §4.6 applies the memory budget to file fields too,
// since a FormFile's range is only cheap to store, not cheap to later
// read.
func relativeFileField(r *Reader, meta *FieldMetadata, bodyOpener func() (io.ReadSeeker, error), remaining *int64) (*FormFile, error) {
	start := r.Position()
	n, err := fieldContentLength(r, remaining)
	if err != nil {
		return nil, err
	}
	return &FormFile{
		Name:     meta.Name,
		Filename: meta.Filename,
		Headers:  meta.Headers,
		offset:   start,
		length:   n,
		opener:   bodyOpener,
	}, nil
}

// fieldContentLength drains the current field without buffering its
// bytes, returning only its length, charging every chunk against the
// form's shared budget. Grounded on original_source/mhttp/form.py's
// in-line offset/total loop in parse_form's file branch.
func fieldContentLength(r *Reader, remaining *int64) (int64, error) {
	var n int64
	for {
		chunk, err := r.Read(readFieldChunk)
		if err != nil {
			return 0, err
		}
		if len(chunk) == 0 {
			return n, nil
		}
		n += int64(len(chunk))
		if err := chargeBudget(remaining, int64(len(chunk))); err != nil {
			return 0, err
		}
	}
}
