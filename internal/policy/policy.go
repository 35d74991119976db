// Package policy loads and validates jurisdiction policy configuration: prohibited-term
// rules, required disclosures and hard length limits.
package policy

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/listing-copy-guard/internal/types"
)

//go:embed rulesets/*.yaml
var rulesets embed.FS

// Format is the encoding of a policy file
type Format string

// Supported policy file formats
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// policyFile is the on-disk shape: a PolicyConfig that may extend a built-in rule set
type policyFile struct {
	types.PolicyConfig `yaml:",inline"`
	Extends            string `json:"extends,omitempty" yaml:"extends,omitempty"`
}

var validate = validator.New()

// Load reads a policy file from disk. The format is chosen by file extension
// (.json for JSON, anything else is read as YAML).
func Load(path string) (*types.PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			Message: fmt.Sprintf("failed to read policy file: %s", path),
			Cause:   err,
		}
	}

	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}

	cfg, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a policy payload
func Parse(data []byte, format Format) (*types.PolicyConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &LoadError{Message: "policy payload is empty"}
	}

	var file policyFile
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &file)
	case FormatYAML:
		err = yaml.Unmarshal(data, &file)
	default:
		return nil, &LoadError{Message: fmt.Sprintf("unsupported policy format: %s", format)}
	}
	if err != nil {
		return nil, &LoadError{Message: "failed to decode policy", Cause: err}
	}

	cfg := file.PolicyConfig
	if file.Extends != "" {
		base, err := Builtin(file.Extends)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve extends %q: %w", file.Extends, err)
		}
		cfg = merge(*base, cfg)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Builtin returns one of the embedded rule sets by jurisdiction name
func Builtin(jurisdiction string) (*types.PolicyConfig, error) {
	name := strings.ToLower(strings.TrimSpace(jurisdiction))
	data, err := rulesets.ReadFile("rulesets/" + name + ".yaml")
	if err != nil {
		return nil, &NotFoundError{Jurisdiction: jurisdiction}
	}
	return Parse(data, FormatYAML)
}

// BuiltinJurisdictions lists the names accepted by Builtin
func BuiltinJurisdictions() []string {
	entries, err := rulesets.ReadDir("rulesets")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Validate checks struct constraints and the semantic rules validator tags cannot
// express: closed categories, compilable patterns and unique ids.
func Validate(cfg *types.PolicyConfig) error {
	if cfg == nil {
		return &ValidationError{Problems: []string{"policy is nil"}}
	}

	var problems []string
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				problems = append(problems, fmt.Sprintf("%s failed '%s' check", fe.Namespace(), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	seen := make(map[string]bool)
	for i, term := range cfg.ProhibitedTerms {
		if term.Term != "" && term.Pattern != "" {
			problems = append(problems, fmt.Sprintf("prohibited_terms[%d] (%s): term and pattern are mutually exclusive", i, term.ID))
		}
		if term.Pattern != "" {
			if _, err := regexp.Compile(term.Pattern); err != nil {
				problems = append(problems, fmt.Sprintf("prohibited_terms[%d] (%s): invalid pattern: %v", i, term.ID, err))
			}
		}
		if term.Category != "" && !term.Category.IsValid() {
			problems = append(problems, fmt.Sprintf("prohibited_terms[%d] (%s): unknown category %q", i, term.ID, term.Category))
		}
		if seen[term.ID] && term.ID != "" {
			problems = append(problems, fmt.Sprintf("prohibited_terms[%d]: duplicate id %q", i, term.ID))
		}
		seen[term.ID] = true
	}

	for i, disclosure := range cfg.RequiredDisclosures {
		if seen[disclosure.ID] && disclosure.ID != "" {
			problems = append(problems, fmt.Sprintf("required_disclosures[%d]: duplicate id %q", i, disclosure.ID))
		}
		seen[disclosure.ID] = true
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// merge layers override on top of base. Rules and disclosures with the same id are
// replaced in place; new ones are appended. Limits are appended so that override
// entries win ties in LimitFor.
func merge(base, override types.PolicyConfig) types.PolicyConfig {
	result := base
	result.Jurisdiction = override.Jurisdiction

	result.ProhibitedTerms = mergeByID(base.ProhibitedTerms, override.ProhibitedTerms, func(t types.ProhibitedTerm) string { return t.ID })
	result.RequiredDisclosures = mergeByID(base.RequiredDisclosures, override.RequiredDisclosures, func(d types.RequiredDisclosure) string { return d.ID })

	result.Limits = append(append([]types.LengthLimit{}, base.Limits...), override.Limits...)

	if override.MaxDescriptionLength > 0 {
		result.MaxDescriptionLength = override.MaxDescriptionLength
	}
	if override.DescriptionField != "" {
		result.DescriptionField = override.DescriptionField
	}
	return result
}

func mergeByID[T any](base, override []T, id func(T) string) []T {
	merged := append([]T{}, base...)
	index := make(map[string]int, len(merged))
	for i, item := range merged {
		index[id(item)] = i
	}
	for _, item := range override {
		if i, ok := index[id(item)]; ok {
			merged[i] = item
			continue
		}
		index[id(item)] = len(merged)
		merged = append(merged, item)
	}
	return merged
}
