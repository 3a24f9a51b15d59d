package multipart

import (
	"mime"
	"strings"

	"github.com/caldervale/go-rawhttpd/pkg/header"
	"github.com/caldervale/go-rawhttpd/pkg/httperr"
)

// FieldMetadata describes one multipart field's Content-Disposition name,
// optional filename, and the field's own (frozen) header map. Grounded on
// original_source/mhttp/form.py's FormMetadata.
type FieldMetadata struct {
	Name     string
	Filename string
	Headers  *header.ReadOnlyMap
}

// IsFile reports whether this field carries a filename, per spec.md §3.
func (m *FieldMetadata) IsFile() bool { return m.Filename != "" }

// newFieldMetadata builds a FieldMetadata from a field's parsed headers,
// requiring Content-Disposition with a name= parameter, defaulting
// Content-Type, and synthesizing a filename for non-text bodies that
// didn't declare one (spec.md §4.5).
func newFieldMetadata(headers *header.Map) (*FieldMetadata, error) {
	cd, ok := headers.Get("Content-Disposition")
	if !ok {
		return nil, httperr.NewBadRequest("multipart.field_metadata", "no field name")
	}
	name, ok := headerParam(cd, "name")
	if !ok || name == "" {
		return nil, httperr.NewBadRequest("multipart.field_metadata", "no field name")
	}
	name = strings.ReplaceAll(name, `"`, "")

	filename, hasFilename := headerParam(cd, "filename")

	contentType, hasCT := headers.Get("Content-Type")
	if !hasCT {
		if !hasFilename || filename == "" {
			contentType = "text/plain"
		} else {
			contentType = "application/octet-stream"
		}
		headers.Set("Content-Type", contentType)
	}

	switch {
	case hasFilename && filename != "":
		filename = strings.ReplaceAll(filename, `"`, "")
	case !isText(contentType):
		if ext := extensionForType(contentType); ext != "" {
			filename = name + ext
		} else {
			filename = ".bin"
		}
	default:
		filename = ""
	}

	return &FieldMetadata{Name: name, Filename: filename, Headers: headers.ReadOnly()}, nil
}

// headerParam extracts an ASCII "name=value" parameter from a header
// value: the value runs from just after "param=" to the next ';' or the
// end of the string. The match must start at a field boundary so that
// looking up "name" doesn't match inside "filename=". Grounded on
// original_source/mhttp/helpers.py's get_header_param.
func headerParam(headerValue, param string) (string, bool) {
	trimmed := strings.TrimSpace(headerValue)
	needle := param + "="
	searchFrom := 0
	for {
		idx := strings.Index(trimmed[searchFrom:], needle)
		if idx == -1 {
			return "", false
		}
		idx += searchFrom
		if idx == 0 || trimmed[idx-1] == ';' || trimmed[idx-1] == ' ' {
			start := idx + len(needle)
			rest := trimmed[start:]
			if end := strings.IndexByte(rest, ';'); end != -1 {
				return rest[:end], true
			}
			return rest, true
		}
		searchFrom = idx + 1
	}
}

// isText reports whether contentType is a known text MIME type: major
// type "text", or "application/" with a subtype in the fixed set spec.md
// §4.5 names. Grounded on original_source/mhttp/helpers.py's is_text.
func isText(contentType string) bool {
	ct := strings.SplitN(contentType, ";", 2)[0]
	parts := strings.SplitN(ct, "/", 2)
	if len(parts) != 2 {
		return false
	}
	major, sub := parts[0], parts[1]
	if major == "text" {
		return true
	}
	if major != "application" {
		return false
	}
	switch sub {
	case "json", "ld+json", "x-httpd-php", "x-sh", "x-csh", "xhtml+xml", "xml":
		return true
	}
	return false
}

// extensionForType looks up a file extension for a MIME type using the
// standard library's type registry. SPEC_FULL.md §3 documents this as the
// one stdlib exception in the component: nothing in the retrieval pack
// offers a reverse type→extension table (gabriel-vasile/mimetype only
// sniffs forward from bytes).
func extensionForType(contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
