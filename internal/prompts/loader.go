// Package prompts holds the embedded templates sent to the contextual judge, the
// rewriter and the quality model. Templates use {{.Name}} placeholders and are
// rendered with Render, which refuses to send a prompt with a placeholder left
// unfilled.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var files embed.FS

var placeholder = regexp.MustCompile(`\{\{\.([A-Za-z][A-Za-z0-9]*)\}\}`)

// catalogue maps file name to prompt key to template
type catalogue map[string]map[string]string

var (
	loadOnce sync.Once
	loaded   catalogue
	loadErr  error
)

// MissingValueError reports placeholders a caller did not supply a value for
type MissingValueError struct {
	File  string
	Key   string
	Names []string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("prompt %s/%s: no value for %s", e.File, e.Key, strings.Join(e.Names, ", "))
}

func load() (catalogue, error) {
	loadOnce.Do(func() {
		entries, err := files.ReadDir(".")
		if err != nil {
			loadErr = fmt.Errorf("failed to list prompt files: %w", err)
			return
		}
		loaded = make(catalogue, len(entries))
		for _, entry := range entries {
			if path.Ext(entry.Name()) != ".json" {
				continue
			}
			data, err := files.ReadFile(entry.Name())
			if err != nil {
				loadErr = fmt.Errorf("failed to read prompt file %s: %w", entry.Name(), err)
				return
			}
			var templates map[string]string
			if err := json.Unmarshal(data, &templates); err != nil {
				loadErr = fmt.Errorf("failed to parse prompt file %s: %w", entry.Name(), err)
				return
			}
			loaded[entry.Name()] = templates
		}
	})
	return loaded, loadErr
}

func template(file, key string) (string, error) {
	c, err := load()
	if err != nil {
		return "", err
	}
	templates, ok := c[file]
	if !ok {
		return "", fmt.Errorf("prompt file %s not found", file)
	}
	tmpl, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, file)
	}
	return tmpl, nil
}

// placeholders returns the sorted, distinct placeholder names of tmpl
func placeholders(tmpl string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// Render fills the template file/key with data. Every placeholder in the template
// must have an entry in data; an empty value is allowed. Extra entries are ignored.
func Render(file, key string, data map[string]string) (string, error) {
	tmpl, err := template(file, key)
	if err != nil {
		return "", err
	}

	var missing []string
	for _, name := range placeholders(tmpl) {
		if _, ok := data[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", &MissingValueError{File: file, Key: key, Names: missing}
	}

	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		return data[placeholder.FindStringSubmatch(m)[1]]
	}), nil
}
