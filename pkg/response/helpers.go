package response

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/caldervale/go-rawhttpd/pkg/jsoncodec"
)

const (
	contentTypeText   = "text/plain"
	contentTypeOctet  = "application/octet-stream"
	contentTypeJSON   = "application/json"
	httpTimeFormat    = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// Make builds a response with status code from body: a string becomes text/plain, a
// []byte becomes application/octet-stream, anything else is marshaled to
// JSON via jsoncodec. A nil body produces a response with no body at all.
// Grounded on original_source/mhttp/messages.py's make_response.
func Make(body any, headers map[string]string, code int) (*Response, error) {
	resp := New(code)
	for k, v := range headers {
		resp.Headers.Set(k, v)
	}
	if body == nil {
		return resp, nil
	}
	switch v := body.(type) {
	case string:
		b := []byte(v)
		resp.SetBody(bytes.NewReader(b), int64(len(b)))
		resp.Headers.Set("Content-Type", contentTypeText)
	case []byte:
		resp.SetBody(bytes.NewReader(v), int64(len(v)))
		resp.Headers.Set("Content-Type", contentTypeOctet)
	default:
		s, err := jsoncodec.Default.Marshal(v)
		if err != nil {
			return nil, err
		}
		b := []byte(s)
		resp.SetBody(bytes.NewReader(b), int64(len(b)))
		resp.Headers.Set("Content-Type", contentTypeJSON)
	}
	return resp, nil
}

// FileOptions configures ServeFile.
type FileOptions struct {
	// Name overrides the filename reported in Content-Disposition. If
	// empty and src is a path, it's derived from the path's base name.
	Name string
	// Attachment, if true, sets Content-Disposition: attachment instead
	// of inline.
	Attachment bool
	// ContentType overrides the detected/guessed MIME type.
	ContentType string
	// LastModified overrides the source's mtime. For a plain stream, which
	// has no mtime, it is the only source of a Last-Modified header.
	LastModified time.Time
}

// ServeFile builds a response serving src (a filesystem path or an
// already-open stream) as the body, inferring Content-Type, filename, and
// Last-Modified the way original_source/mhttp/messages.py's file_response
// does: a path's extension and mtime are authoritative when available,
// otherwise the content is sniffed and no Last-Modified is set.
func ServeFile(src any, opts FileOptions) (*Response, error) {
	resp := New(200)

	var (
		stream       io.Reader
		closer       io.Closer
		size         int64
		haveSize     bool
		lastModified time.Time
	)

	switch v := src.(type) {
	case string:
		f, err := os.Open(v)
		if err != nil {
			return nil, err
		}
		stream = f
		closer = f
		if info, err := f.Stat(); err == nil {
			size = info.Size()
			haveSize = true
			if opts.LastModified.IsZero() {
				lastModified = info.ModTime()
			}
		}
		if opts.Name == "" {
			opts.Name = filepath.Base(v)
		}
		if opts.ContentType == "" {
			if guessed := mime.TypeByExtension(filepath.Ext(v)); guessed != "" {
				opts.ContentType = guessed
			}
		}
	case io.Reader:
		stream = v
		if c, ok := v.(io.Closer); ok {
			closer = c
		}
	default:
		return nil, fmt.Errorf("response: ServeFile requires a path or io.Reader")
	}

	if !opts.LastModified.IsZero() {
		lastModified = opts.LastModified
	}

	if opts.ContentType == "" {
		sniffed, sniffErr := sniffContentType(stream)
		if sniffErr != nil {
			if closer != nil {
				closer.Close()
			}
			return nil, sniffErr
		}
		opts.ContentType = sniffed.contentType
		stream = sniffed.stream
	}

	if opts.Name == "" {
		opts.Name = "file" + extensionOrBin(opts.ContentType)
	}

	disposition := "inline"
	if opts.Attachment {
		disposition = "attachment"
	}
	resp.Headers.Set("Content-Type", opts.ContentType)
	resp.Headers.Set("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, opts.Name))
	if !lastModified.IsZero() {
		resp.Headers.Set("Last-Modified", lastModified.UTC().Format(httpTimeFormat))
	}

	if haveSize {
		resp.SetBody(stream, size)
	} else {
		resp.SetBodyChunked(stream, 0)
	}
	return resp, nil
}

type sniffResult struct {
	contentType string
	stream      io.Reader
}

// sniffContentType detects a stream's MIME type from its leading bytes via
// gabriel-vasile/mimetype, re-assembling a stream that still yields the
// sniffed prefix to the caller.
func sniffContentType(r io.Reader) (sniffResult, error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return sniffResult{}, err
	}
	head = head[:n]
	mtype := mimetype.Detect(head)
	return sniffResult{
		contentType: mtype.String(),
		stream:      io.MultiReader(bytes.NewReader(head), r),
	}, nil
}

func extensionOrBin(contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ".bin"
	}
	return exts[0]
}
