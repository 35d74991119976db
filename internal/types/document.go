// Package types provides type definitions for structured data used throughout the listing-copy-guard system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is an ordered mapping from FieldPath to text. The zero value is an empty,
// usable Document. Paths keep the order in which they were first set.
type Document struct {
	order  []FieldPath
	fields map[FieldPath]string
}

// NewDocument creates a Document from path/text pairs, keeping argument order
func NewDocument(pairs ...string) *Document {
	doc := &Document{}
	for i := 0; i+1 < len(pairs); i += 2 {
		doc.Set(FieldPath(pairs[i]), pairs[i+1])
	}
	return doc
}

// Set stores text at path, appending path if it is new
func (d *Document) Set(path FieldPath, text string) {
	if d.fields == nil {
		d.fields = make(map[FieldPath]string)
	}
	if _, exists := d.fields[path]; !exists {
		d.order = append(d.order, path)
	}
	d.fields[path] = text
}

// Get returns the text stored at path
func (d *Document) Get(path FieldPath) (string, bool) {
	if d == nil || d.fields == nil {
		return "", false
	}
	text, ok := d.fields[path]
	return text, ok
}

// Has reports whether path exists in the document
func (d *Document) Has(path FieldPath) bool {
	_, ok := d.Get(path)
	return ok
}

// Paths returns the field paths in insertion order
func (d *Document) Paths() []FieldPath {
	if d == nil {
		return nil
	}
	paths := make([]FieldPath, len(d.order))
	copy(paths, d.order)
	return paths
}

// Len returns the number of fields
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.order)
}

// Clone returns a deep copy; the clone shares no state with d
func (d *Document) Clone() *Document {
	clone := &Document{}
	if d == nil {
		return clone
	}
	clone.order = make([]FieldPath, len(d.order))
	copy(clone.order, d.order)
	clone.fields = make(map[FieldPath]string, len(d.fields))
	for k, v := range d.fields {
		clone.fields[k] = v
	}
	return clone
}

// Equal reports whether both documents hold the same paths, in the same order, with
// byte-identical text
func (d *Document) Equal(other *Document) bool {
	if d.Len() != other.Len() {
		return false
	}
	for i, path := range d.Paths() {
		if other.order[i] != path {
			return false
		}
		if d.fields[path] != other.fields[path] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the document as a JSON object with keys in insertion order
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, path := range d.Paths() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(path))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(d.fields[path])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object of string values, keeping key order
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document must be a JSON object")
	}

	decoded := Document{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read document key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("document key must be a string")
		}
		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("field %q must be a string: %w", key, err)
		}
		decoded.Set(FieldPath(key), text)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to read document end: %w", err)
	}

	*d = decoded
	return nil
}
