package inject

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// diffContext is the number of unchanged lines shown around each hunk.
const diffContext = 3

// Diff returns the unified diff between the old and new content of the
// source file labelled name, or "" when they are equal.
func Diff(name, oldText, newText string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        splitLines(oldText),
		B:        splitLines(newText),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  diffContext,
	}

	unified, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("computing diff for %s: %w", name, err)
	}

	return unified, nil
}

// splitLines splits a string into lines for diff processing.
// Each element includes a trailing newline for difflib compatibility.
func splitLines(s string) []string {
	if s == "" {
		return []string{""}
	}

	return strings.SplitAfter(s, "\n")
}
