package plan

import (
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffResult holds a unified diff between two renderings of a template.
type DiffResult struct {
	Unified        string
	HasDifferences bool
	Hunks          []string
	OldLabel       string
	NewLabel       string
}

// DiffOptions configures diff computation.
type DiffOptions struct {
	OldLabel string
	NewLabel string
	Context  int
}

// DefaultDiffOptions labels the sides "existing" and "generated".
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{
		OldLabel: "existing",
		NewLabel: "generated",
		Context:  3,
	}
}

// ComputeDiff computes a unified diff between two documents.
func ComputeDiff(oldDoc, newDoc string, opts DiffOptions) (*DiffResult, error) {
	diff := difflib.UnifiedDiff{
		A:        splitLines(oldDoc),
		B:        splitLines(newDoc),
		FromFile: opts.OldLabel,
		ToFile:   opts.NewLabel,
		Context:  opts.Context,
	}

	unified, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	res := &DiffResult{
		Unified:        unified,
		HasDifferences: unified != "",
		OldLabel:       opts.OldLabel,
		NewLabel:       opts.NewLabel,
	}

	if res.HasDifferences {
		res.Hunks = extractHunks(unified)
	}

	return res, nil
}

// extractHunks splits unified diff output into hunks, each starting at an
// "@@" line. File headers are not part of any hunk.
func extractHunks(unified string) []string {
	var (
		hunks   []string
		current strings.Builder
	)

	for _, line := range strings.SplitAfter(unified, "\n") {
		if strings.HasPrefix(line, "@@") && current.Len() > 0 {
			hunks = append(hunks, current.String())
			current.Reset()
		}

		if current.Len() == 0 && !strings.HasPrefix(line, "@@") {
			continue
		}

		current.WriteString(line)
	}

	if current.Len() > 0 {
		hunks = append(hunks, current.String())
	}

	return hunks
}

// ANSI escape sequences used for diff coloring.
const (
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiCyan  = "\033[36m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// WriteDiff writes the diff to w, colored when color is set.
func WriteDiff(w io.Writer, result *DiffResult, color bool) {
	if !result.HasDifferences {
		_, _ = fmt.Fprintln(w, "No differences found.")
		return
	}

	for _, line := range strings.Split(strings.TrimSuffix(result.Unified, "\n"), "\n") {
		if !color {
			_, _ = fmt.Fprintln(w, line)
			continue
		}

		_, _ = fmt.Fprintln(w, colorize(line))
	}
}

func colorize(line string) string {
	var code string

	switch {
	case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		code = ansiBold
	case strings.HasPrefix(line, "@@"):
		code = ansiCyan
	case strings.HasPrefix(line, "-"):
		code = ansiRed
	case strings.HasPrefix(line, "+"):
		code = ansiGreen
	default:
		return line
	}

	return code + line + ansiReset
}

// splitLines splits s into lines for difflib, each keeping its newline.
func splitLines(s string) []string {
	if s == "" {
		return []string{""}
	}

	return strings.SplitAfter(s, "\n")
}
