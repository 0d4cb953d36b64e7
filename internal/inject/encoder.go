package inject

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/webinject/internal/detect"
	"github.com/hupe1980/webinject/internal/minify"
)

// Mode is the literal form an asset is embedded as.
type Mode int

const (
	// ModeBytes renders the asset as a {0x.., ...} byte array initializer.
	ModeBytes Mode = iota
	// ModeString renders the (minified) asset as a string literal.
	ModeString
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeString {
		return "string"
	}

	return "bytes"
}

// Minifier shrinks asset text of a given kind.
type Minifier interface {
	Minify(kind minify.Kind, src string) (string, error)
}

// BinaryDetector reports whether a file holds binary content.
type BinaryDetector interface {
	IsBinary(path string) (bool, error)
}

// Encoder turns asset files into source literals.
type Encoder struct {
	minifier Minifier
	detector BinaryDetector
}

// NewEncoder creates an Encoder. A nil minifier or detector selects the
// default implementation.
func NewEncoder(m Minifier, d BinaryDetector) *Encoder {
	if m == nil {
		m = minify.New()
	}

	if d == nil {
		d = detect.New()
	}

	return &Encoder{minifier: m, detector: d}
}

// Mode decides how the asset at path is embedded for declaredType: string
// literals need the String token and a non-binary asset.
func (e *Encoder) Mode(path, declaredType string) (Mode, error) {
	if !hasStringToken(declaredType) {
		return ModeBytes, nil
	}

	binary, err := e.detector.IsBinary(path)
	if err != nil {
		return ModeBytes, err
	}

	if binary {
		return ModeBytes, nil
	}

	return ModeString, nil
}

// Encode reads the asset at path and returns its literal for declaredType
// together with the mode chosen.
func (e *Encoder) Encode(path, declaredType string) (string, Mode, error) {
	mode, err := e.Mode(path, declaredType)
	if err != nil {
		return "", mode, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // asset paths come from directives in the watched tree
	if err != nil {
		return "", mode, fmt.Errorf("reading asset %s: %w", path, err)
	}

	if mode == ModeBytes {
		return EncodeBytes(data), mode, nil
	}

	text, err := detect.DecodeText(data)
	if err != nil {
		return "", mode, fmt.Errorf("decoding asset %s: %w", path, err)
	}

	kind := minify.KindFor(path)
	masked, restore := maskPlaceholders(text)

	text, err = e.minifier.Minify(kind, masked)
	if err != nil {
		return "", mode, fmt.Errorf("asset %s: %w", path, err)
	}

	return Stringify(restore.Replace(text)), mode, nil
}

// placeholderMark prefixes the identifiers that stand in for {{ name }}
// slots while an asset is minified.
const placeholderMark = "__wi_ph"

// maskPlaceholders swaps every {{ name }} slot in text for a plain
// identifier, so minifiers that parse JavaScript or CSS accept it in any
// position. The returned replacer puts the original slots back.
func maskPlaceholders(text string) (string, *strings.Replacer) {
	mark := placeholderMark
	for strings.Contains(text, mark) {
		mark += "_"
	}

	var pairs []string

	n := 0
	masked := placeholder.ReplaceAllStringFunc(text, func(slot string) string {
		token := mark + strconv.Itoa(n) + "__"
		n++

		pairs = append(pairs, token, slot)

		return token
	})

	return masked, strings.NewReplacer(pairs...)
}

const hexDigits = "0123456789abcdef"

// EncodeBytes renders data as a brace-delimited list of lower-case hex
// bytes, e.g. {0x48, 0x69}. Empty data yields {}.
func EncodeBytes(data []byte) string {
	var b strings.Builder

	b.Grow(2 + len(data)*6)
	b.WriteByte('{')

	for i, c := range data {
		if i > 0 {
			b.WriteString(", ")
		}

		b.WriteString("0x")
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}

	b.WriteByte('}')

	return b.String()
}

// placeholder matches {{ name }} template slots inside string assets.
var placeholder = regexp.MustCompile(`\{\{[ \t]*([a-zA-Z_][a-zA-Z0-9_]+)[ \t]*\}\}`)

// Stringify quotes text as a string literal: double quotes are escaped and
// every {{ name }} placeholder becomes a concatenation with the variable
// name, so "<b>{{ user }}</b>" turns into "<b>" + user + "</b>".
func Stringify(text string) string {
	text = strings.ReplaceAll(text, `"`, `\"`)
	text = placeholder.ReplaceAllString(text, `" + ${1} + "`)

	return `"` + text + `"`
}
