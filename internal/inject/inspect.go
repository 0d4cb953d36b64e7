package inject

import (
	"fmt"
	"os"
)

// Entry describes one directive found by Inspect.
type Entry struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Type   string `json:"type"`
	Ident  string `json:"ident"`
	Array  bool   `json:"array,omitempty"`
	Asset  string `json:"asset"`
	Exists bool   `json:"exists"`
	Mode   string `json:"mode,omitempty"`
}

// Inspect lists every directive under Root without modifying anything.
// Source paths are reported relative to Root.
func (b *Builder) Inspect() ([]Entry, error) {
	sources, err := b.Sources()
	if err != nil {
		return nil, err
	}

	entries := []Entry{}

	for _, src := range sources {
		data, err := os.ReadFile(src) //nolint:gosec // src is a watched source
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", src, err)
		}

		for _, d := range FindDirectives(string(data)) {
			asset := ResolveAsset(src, d.Asset)

			e := Entry{
				Source: b.opts.Status.Rel(src),
				Line:   d.Line,
				Type:   d.Type,
				Ident:  d.Ident,
				Array:  d.Array,
				Asset:  b.opts.Status.Rel(asset),
			}

			if _, err := os.Stat(asset); err == nil {
				e.Exists = true

				if mode, err := b.opts.Encoder.Mode(asset, d.Type); err == nil {
					e.Mode = mode.String()
				}
			}

			entries = append(entries, e)
		}
	}

	return entries, nil
}
