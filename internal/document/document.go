// Package document converts the draft provider's nested, loosely-typed copy containers
// into the flat FieldPath → text Document every pipeline stage works on.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/jonathan/listing-copy-guard/internal/schemas"
	"github.com/jonathan/listing-copy-guard/internal/types"
)

// MalformedError indicates a draft document that cannot be addressed by field paths
type MalformedError struct {
	Path    string
	Message string
	Cause   error
}

func (e *MalformedError) Error() string {
	location := e.Path
	if location == "" {
		location = "(root)"
	}
	if e.Cause != nil {
		return fmt.Sprintf("malformed document at %s: %s: %v", location, e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed document at %s: %s", location, e.Message)
}

func (e *MalformedError) Unwrap() error {
	return e.Cause
}

// LoadFile reads a draft document from a JSON file
func LoadFile(path string) (*types.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load reads a draft document in flat ({"a.b": "text"}) or nested form. The payload is
// validated against the document schema, then flattened keeping source key order.
// Null leaves are skipped.
func Load(r io.Reader) (*types.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := schemas.ValidateDocument(data); err != nil {
		return nil, &MalformedError{Message: "document does not match schema", Cause: err}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	doc := &types.Document{}
	if err := walk(dec, "", doc); err != nil {
		return nil, err
	}
	if doc.Len() == 0 {
		return nil, &MalformedError{Message: "document has no text fields"}
	}
	return doc, nil
}

// walk consumes one JSON value from dec and records its text leaves under prefix
func walk(dec *json.Decoder, prefix string, doc *types.Document) error {
	tok, err := dec.Token()
	if err != nil {
		return &MalformedError{Path: prefix, Message: "invalid JSON", Cause: err}
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return &MalformedError{Path: prefix, Message: "invalid object key", Cause: err}
				}
				key, _ := keyTok.(string)
				if key == "" {
					return &MalformedError{Path: prefix, Message: "empty key"}
				}
				if err := walk(dec, join(prefix, key), doc); err != nil {
					return err
				}
			}
		case '[':
			for i := 0; dec.More(); i++ {
				if err := walk(dec, join(prefix, strconv.Itoa(i)), doc); err != nil {
					return err
				}
			}
		}
		// closing delimiter
		if _, err := dec.Token(); err != nil {
			return &MalformedError{Path: prefix, Message: "unterminated container", Cause: err}
		}
	case string:
		if prefix == "" {
			return &MalformedError{Message: "document must be an object"}
		}
		path := types.FieldPath(prefix)
		if doc.Has(path) {
			return &MalformedError{Path: prefix, Message: "field path addressed twice"}
		}
		doc.Set(path, v)
	case nil:
		// absent optional field
	default:
		return &MalformedError{Path: prefix, Message: fmt.Sprintf("leaf must be text, got %T", v)}
	}
	return nil
}

// Flatten converts an already-decoded nested container into a Document. Go maps carry
// no order, so keys are sorted within each object; list items are addressed by index.
func Flatten(nested map[string]any) (*types.Document, error) {
	doc := &types.Document{}
	if err := flattenInto(doc, "", nested); err != nil {
		return nil, err
	}
	return doc, nil
}

func flattenInto(doc *types.Document, prefix string, value any) error {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "" {
				return &MalformedError{Path: prefix, Message: "empty key"}
			}
			if err := flattenInto(doc, join(prefix, k), v[k]); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range v {
			if err := flattenInto(doc, join(prefix, strconv.Itoa(i)), item); err != nil {
				return err
			}
		}
	case []string:
		for i, item := range v {
			doc.Set(types.FieldPath(join(prefix, strconv.Itoa(i))), item)
		}
	case map[string]string:
		nested := make(map[string]any, len(v))
		for k, s := range v {
			nested[k] = s
		}
		return flattenInto(doc, prefix, nested)
	case string:
		if prefix == "" {
			return &MalformedError{Message: "document must be an object"}
		}
		doc.Set(types.FieldPath(prefix), v)
	case nil:
	default:
		return &MalformedError{Path: prefix, Message: fmt.Sprintf("leaf must be text, got %T", v)}
	}
	return nil
}

// Unflatten rebuilds the nested form for presentation layers. Objects whose keys are
// exactly 0..n-1 become lists. A path that is both a leaf and a prefix of another path
// is reported as malformed.
func Unflatten(doc *types.Document) (map[string]any, error) {
	root := make(map[string]any)
	for _, path := range doc.Paths() {
		text, _ := doc.Get(path)
		segments := path.Segments()
		node := root
		for i, seg := range segments {
			if i == len(segments)-1 {
				if _, exists := node[seg]; exists {
					return nil, &MalformedError{Path: string(path), Message: "leaf collides with container"}
				}
				node[seg] = text
				break
			}
			child, exists := node[seg]
			if !exists {
				next := make(map[string]any)
				node[seg] = next
				node = next
				continue
			}
			next, ok := child.(map[string]any)
			if !ok {
				return nil, &MalformedError{Path: string(path), Message: "container collides with leaf"}
			}
			node = next
		}
	}
	for k, v := range root {
		root[k] = listify(v)
	}
	return root, nil
}

func listify(value any) any {
	m, ok := value.(map[string]any)
	if !ok {
		return value
	}
	for k, v := range m {
		m[k] = listify(v)
	}
	for i := 0; i < len(m); i++ {
		if _, ok := m[strconv.Itoa(i)]; !ok {
			return m
		}
	}
	if len(m) == 0 {
		return m
	}
	list := make([]any, len(m))
	for i := range list {
		list[i] = m[strconv.Itoa(i)]
	}
	return list
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + types.PathSeparator + key
}
