// Package types provides type definitions for structured data used throughout the listing-copy-guard system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// DefaultDescriptionField is the pattern MaxDescriptionLength applies to when the
// policy does not name one
const DefaultDescriptionField = "description"

// PolicyConfig is a jurisdiction's read-only rule set: prohibited terms, required
// disclosures and hard length limits per channel.
type PolicyConfig struct {
	Jurisdiction         string               `json:"jurisdiction" yaml:"jurisdiction" validate:"required"`
	ProhibitedTerms      []ProhibitedTerm     `json:"prohibited_terms" yaml:"prohibited_terms" validate:"dive"`
	RequiredDisclosures  []RequiredDisclosure `json:"required_disclosures,omitempty" yaml:"required_disclosures,omitempty" validate:"dive"`
	Limits               []LengthLimit        `json:"limits,omitempty" yaml:"limits,omitempty" validate:"dive"`
	MaxDescriptionLength int                  `json:"max_description_length,omitempty" yaml:"max_description_length,omitempty" validate:"gte=0"`
	DescriptionField     string               `json:"description_field,omitempty" yaml:"description_field,omitempty"`
}

// ProhibitedTerm is one literal (Term) or regular-expression (Pattern) rule
type ProhibitedTerm struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Term        string   `json:"term,omitempty" yaml:"term,omitempty" validate:"required_without=Pattern"`
	Pattern     string   `json:"pattern,omitempty" yaml:"pattern,omitempty" validate:"required_without=Term"`
	Category    Category `json:"category" yaml:"category" validate:"required"`
	Severity    Severity `json:"severity" yaml:"severity" validate:"required,oneof=hard soft"`
	Law         string   `json:"law,omitempty" yaml:"law,omitempty"`
	Explanation string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Alternative string   `json:"alternative,omitempty" yaml:"alternative,omitempty"`
}

// Label returns the human-readable form of the rule (its term, or its pattern)
func (t ProhibitedTerm) Label() string {
	if t.Term != "" {
		return t.Term
	}
	return t.Pattern
}

// RequiredDisclosure is text that must appear in every field matching one of Fields
type RequiredDisclosure struct {
	ID       string   `json:"id" yaml:"id" validate:"required"`
	Text     string   `json:"text" yaml:"text" validate:"required"`
	Fields   []string `json:"fields" yaml:"fields" validate:"required,min=1,dive,required"`
	Severity Severity `json:"severity" yaml:"severity" validate:"required,oneof=hard soft"`
	Law      string   `json:"law,omitempty" yaml:"law,omitempty"`
}

// LengthLimit is a hard character limit for every field matching Field
type LengthLimit struct {
	Field    string `json:"field" yaml:"field" validate:"required"`
	MaxChars int    `json:"max_chars" yaml:"max_chars" validate:"required,gte=1"`
}

// LimitFor returns the hard character limit for path. When several limits match, the
// one with the most segments wins; on a tie the one listed last wins.
func (p *PolicyConfig) LimitFor(path FieldPath) (int, bool) {
	if p == nil {
		return 0, false
	}

	best, bestSegments, found := 0, -1, false
	consider := func(pattern string, maxChars int) {
		if maxChars <= 0 || !path.Matches(pattern) {
			return
		}
		segments := len(strings.Split(pattern, PathSeparator))
		if segments >= bestSegments {
			best, bestSegments, found = maxChars, segments, true
		}
	}

	if p.MaxDescriptionLength > 0 {
		field := p.DescriptionField
		if field == "" {
			field = DefaultDescriptionField
		}
		consider(field, p.MaxDescriptionLength)
	}
	for _, limit := range p.Limits {
		consider(limit.Field, limit.MaxChars)
	}
	return best, found
}
