// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/listing-copy-guard/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// clip shortens s to at most n runes, marking the cut with "..."
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBanner(message string) {
	fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, message)
	fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
}

// PrintViolations outputs the compliance violations found by a scan.
func (p *Printer) PrintViolations(violations []types.Violation) {
	if len(violations) == 0 {
		p.printBanner("✅ NO VIOLATIONS FOUND")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d violations:\n\n", len(violations)))

	count := min(len(violations), maxItemsToShow)
	for i := 0; i < count; i++ {
		v := violations[i]
		label := v.RuleID
		if v.IsContextual {
			label = "contextual"
		}
		sb.WriteString(fmt.Sprintf("⚠ %s (%s, %s)\n", label, v.Severity, v.Category))
		sb.WriteString(fmt.Sprintf("  %s: %q\n", v.FieldPath, v.MatchedTerm))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(violations) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more violations", len(violations)-maxItemsToShow))
	}

	p.printBox("COMPLIANCE VIOLATIONS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAutoFixes outputs the fixes applied to the copy.
func (p *Printer) PrintAutoFixes(fixes []types.AutoFix) {
	if len(fixes) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Applied %d fixes:\n\n", len(fixes)))

	count := min(len(fixes), maxItemsToShow)
	for i := 0; i < count; i++ {
		f := fixes[i]
		sb.WriteString(fmt.Sprintf("• %s [%s]\n", f.FieldPath, f.Source))
		sb.WriteString(fmt.Sprintf("  - %s\n", f.BeforeText))
		sb.WriteString(fmt.Sprintf("  + %s\n", f.AfterText))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(fixes) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more fixes", len(fixes)-maxItemsToShow))
	}

	p.printBox("AUTO-FIXES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintConstraints outputs the fields truncated to their channel limits.
func (p *Printer) PrintConstraints(records []types.ConstraintViolation) {
	if len(records) == 0 {
		return
	}

	var sb strings.Builder
	for _, c := range records {
		sb.WriteString(fmt.Sprintf("✂ %s (limit %d)\n", c.FieldPath, c.Limit))
		if c.FixedText != nil {
			sb.WriteString(fmt.Sprintf("  %s\n", *c.FixedText))
		}
	}

	p.printBox("LENGTH LIMITS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintQuality outputs the campaign quality summary and its required issues.
func (p *Printer) PrintQuality(result *types.CampaignQualityResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Checks:   %d/%d passed\n", result.TotalPassed, result.TotalChecks))
	sb.WriteString(fmt.Sprintf("Issues:   %d required, %d recommended\n", result.RequiredIssues, result.RecommendedIssues))
	sb.WriteString(fmt.Sprintf("Applied:  %d\n", result.ImprovementsApplied))
	if result.OverallScore != nil {
		sb.WriteString(fmt.Sprintf("Score:    %.1f/10\n", *result.OverallScore))
	}

	var required []types.QualityIssue
	for _, is := range result.Issues {
		if is.Priority == types.PriorityRequired {
			required = append(required, is)
		}
	}
	if len(required) > 0 {
		sb.WriteString("\nRequired:\n")
		count := min(len(required), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s: %s\n", required[i].FieldPath, required[i].Issue))
		}
		if len(required) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(required)-maxItemsToShow))
		}
	}

	p.printBox("QUALITY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintVerdict outputs the campaign verdict and any failing fields.
func (p *Printer) PrintVerdict(result *types.ComplianceResult) {
	if result == nil {
		return
	}

	icon := "✅"
	switch result.Verdict {
	case types.VerdictNeedsReview:
		icon = "🔎"
	case types.VerdictNonCompliant:
		icon = "❌"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s (%s)\n", icon, result.Verdict, result.Jurisdiction))
	sb.WriteString(fmt.Sprintf("Violations: %d  Fixes: %d  Unresolved: %d\n",
		len(result.Violations), len(result.AutoFixes), len(result.Unresolved)))

	for _, fv := range result.FieldVerdicts {
		if fv.Pass && !fv.Partial {
			continue
		}
		status := "fail"
		if fv.Pass {
			status = "partial"
		}
		sb.WriteString(fmt.Sprintf("  • %s: %s\n", fv.FieldPath, status))
	}

	p.printBox("CAMPAIGN VERDICT", strings.TrimSuffix(sb.String(), "\n"))
}
