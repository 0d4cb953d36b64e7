package inject

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/webinject/internal/logging"
)

// Injection records one directive whose text was replaced.
type Injection struct {
	// Source is the file holding the directive.
	Source string `json:"source"`

	// Asset is the resolved asset path.
	Asset string `json:"asset"`

	// Ident is the declared identifier.
	Ident string `json:"ident"`

	// Line is the 1-based line of the directive comment.
	Line int `json:"line"`

	// Mode is the literal form used. Unset for missing assets.
	Mode Mode `json:"-"`

	// Missing is true when the asset did not exist and the diagnostic
	// string was substituted.
	Missing bool `json:"missing,omitempty"`
}

// Scanner rewrites the directive blocks of one source text.
type Scanner struct {
	encoder *Encoder
	logger  *slog.Logger
}

// NewScanner creates a Scanner. logger may be nil.
func NewScanner(encoder *Encoder, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.Discard()
	}

	return &Scanner{encoder: encoder, logger: logger}
}

// ResolveAsset joins a directive's asset path onto the directory of the
// source file that declares it.
func ResolveAsset(sourcePath, asset string) string {
	return filepath.Join(filepath.Dir(sourcePath), asset)
}

// MissingLiteral is the diagnostic assigned when an asset does not exist.
func MissingLiteral(assetPath string) string {
	return `"File not found: ` + assetPath + `"`
}

// Scan rewrites every directive in text, which was read from parsedPath,
// in reaction to a change of changedPath. Directives with a missing asset
// always receive the diagnostic string. Directives with an existing asset
// are re-encoded only when parsedPath itself or their asset is the changed
// path; all others are left as they are. Both paths must be absolute.
// The returned injections list every block whose text was replaced.
func (s *Scanner) Scan(text, parsedPath, changedPath string) (string, []Injection) {
	directives := FindDirectives(text)
	if len(directives) == 0 {
		return text, nil
	}

	var (
		b          strings.Builder
		injections []Injection
		last       int
	)

	b.Grow(len(text))

	for _, d := range directives {
		b.WriteString(text[last:d.Start])
		last = d.End

		oldCode := d.Code()
		newCode, inj, ok := s.replace(d, parsedPath, changedPath)

		if !ok || newCode == oldCode {
			b.WriteString(oldCode)
			continue
		}

		b.WriteString(newCode)
		injections = append(injections, inj)
	}

	b.WriteString(text[last:])

	return b.String(), injections
}

// replace computes the new code for d. ok is false when d is left alone.
func (s *Scanner) replace(d Directive, parsedPath, changedPath string) (string, Injection, bool) {
	asset := ResolveAsset(parsedPath, d.Asset)
	inj := Injection{Source: parsedPath, Asset: asset, Ident: d.Ident, Line: d.Line}

	if _, err := os.Stat(asset); err != nil {
		inj.Missing = true
		return d.Prefix + " " + MissingLiteral(asset) + ";", inj, true
	}

	if parsedPath != changedPath && asset != changedPath {
		return "", inj, false
	}

	literal, mode, err := s.encoder.Encode(asset, d.Type)
	if err != nil {
		s.logger.Error("encoding asset failed",
			slog.String("source", parsedPath),
			slog.Int("line", d.Line),
			slog.String("asset", asset),
			slog.String("error", err.Error()),
		)

		return "", inj, false
	}

	inj.Mode = mode

	return d.Prefix + " " + literal + ";", inj, true
}
