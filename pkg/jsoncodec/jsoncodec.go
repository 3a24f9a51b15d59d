// Package jsoncodec is the thin, swappable JSON collaborator used by the
// config loader and the response writer's make-response helper. The framework treats JSON (de)serialization as an opaque
// external concern; this package supplies a default backed by
// encoding/json rather than hand-rolling a parser, since nothing in the
// retrieval pack offers a third-party JSON library to reach for instead.
package jsoncodec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MaxJSONLength bounds how large a JSON request body may be before the
// caller should reject it outright, mirroring the original system's
// myjson.MAX_JSON_LENGTH.
const MaxJSONLength = 10 * 1024 * 1024

// Codec marshals and unmarshals JSON values. Unmarshal enforces maxDepth
// nested object/array levels, rejecting anything deeper.
type Codec interface {
	Marshal(v any) (string, error)
	Unmarshal(data string, maxDepth int) (any, error)
}

// Default is the encoding/json-backed Codec.
var Default Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Unmarshal decodes data, rejecting any value nested more than maxDepth
// levels deep. A maxDepth of 0 disables the depth check.
func (jsonCodec) Unmarshal(data string, maxDepth int) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if maxDepth > 0 {
		if err := checkDepth(v, 0, maxDepth); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func checkDepth(v any, depth, maxDepth int) error {
	if depth > maxDepth {
		return fmt.Errorf("jsoncodec: exceeds max depth %d", maxDepth)
	}
	switch t := v.(type) {
	case map[string]any:
		for _, child := range t {
			if err := checkDepth(child, depth+1, maxDepth); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range t {
			if err := checkDepth(child, depth+1, maxDepth); err != nil {
				return err
			}
		}
	}
	return nil
}
