package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Status prints the one-line announcements a user watches while editing:
// "Update: <file>", "Inject: <asset>" and the startup banner. Paths are
// shown relative to the watch root.
type Status struct {
	out    io.Writer
	root   string
	update lipgloss.Style
	inject lipgloss.Style
	warn   lipgloss.Style

	bold    lipgloss.Style
	hunk    lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
	color   bool
}

// NewStatus creates a status printer writing to out. The color profile is
// detected from out, so plain buffers and pipes never receive escape codes;
// noColor disables styling altogether.
func NewStatus(out io.Writer, root string, noColor bool) *Status {
	if out == nil {
		out = io.Discard
	}

	s := &Status{out: out, root: root}

	if noColor {
		s.update = lipgloss.NewStyle()
		s.inject = lipgloss.NewStyle()
		s.warn = lipgloss.NewStyle()
		s.bold = lipgloss.NewStyle()
		s.hunk = lipgloss.NewStyle()
		s.added = lipgloss.NewStyle()
		s.removed = lipgloss.NewStyle()

		return s
	}

	r := lipgloss.NewRenderer(out)
	s.update = r.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	s.inject = r.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	s.warn = r.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	s.bold = r.NewStyle().Bold(true).TabWidth(lipgloss.NoTabConversion)
	s.hunk = r.NewStyle().Foreground(lipgloss.Color("6")).TabWidth(lipgloss.NoTabConversion)
	s.added = r.NewStyle().Foreground(lipgloss.Color("2")).TabWidth(lipgloss.NoTabConversion)
	s.removed = r.NewStyle().Foreground(lipgloss.Color("1")).TabWidth(lipgloss.NoTabConversion)
	s.color = true

	return s
}

// Watching announces the absolute directory being watched.
func (s *Status) Watching(dir string) {
	fmt.Fprintf(s.out, "Watching for changes on: %s\n\n", dir)
}

// Update announces that a source file was rewritten.
func (s *Status) Update(path string) {
	fmt.Fprintf(s.out, "%s %s\n", s.update.Render("Update:"), s.Rel(path))
}

// Inject announces that an asset was injected into a directive.
func (s *Status) Inject(path string) {
	fmt.Fprintf(s.out, "%s %s\n", s.inject.Render("Inject:"), s.Rel(path))
}

// Missing announces a directive whose asset does not exist.
func (s *Status) Missing(path string) {
	fmt.Fprintf(s.out, "%s %s\n", s.warn.Render("Missing:"), s.Rel(path))
}

// Rel returns path relative to the watch root, or path unchanged when it
// lies outside of it.
func (s *Status) Rel(path string) string {
	if s.root == "" {
		return path
	}

	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}

	return rel
}

// Diff prints a unified diff, colouring added and removed lines. An empty
// diff prints a short notice instead.
func (s *Status) Diff(unified string) {
	if unified == "" {
		fmt.Fprintln(s.out, "No changes.")
		return
	}

	for _, line := range strings.SplitAfter(unified, "\n") {
		if line == "" {
			continue
		}

		text := strings.TrimSuffix(line, "\n")

		if !s.color {
			fmt.Fprintln(s.out, text)
			continue
		}

		switch {
		case strings.HasPrefix(text, "---"), strings.HasPrefix(text, "+++"):
			text = s.bold.Render(text)
		case strings.HasPrefix(text, "@@"):
			text = s.hunk.Render(text)
		case strings.HasPrefix(text, "-"):
			text = s.removed.Render(text)
		case strings.HasPrefix(text, "+"):
			text = s.added.Render(text)
		}

		fmt.Fprintln(s.out, text)
	}
}
