package inject

import (
	"strings"
)

// commentOpen starts every directive comment line.
const commentOpen = `// @inject "`

// Directive is one located @inject block:
//
//	// @inject "<asset>"
//	<type> <ident>[[]] = <expr>;
//
// Start and End delimit the span from the comment's "//" up to and including
// the terminating ";". Text outside that span (indentation, trailing
// comments) is never touched by a rewrite.
type Directive struct {
	Start int
	End   int

	// Line is the 1-based line of the comment.
	Line int

	// Asset is the referenced path, relative to the source file's directory.
	Asset string

	// Type is the declared type token sequence, e.g. "String" or "const char".
	Type string

	// Ident is the declared identifier.
	Ident string

	// Array is true when the identifier is followed by "[]".
	Array bool

	// Prefix is the text from the comment up to and including "=".
	Prefix string

	// Expr is the currently assigned expression between "=" and ";".
	Expr string
}

// Code returns the full text of the block as it appears in the source.
func (d Directive) Code() string {
	return d.Prefix + d.Expr + ";"
}

// WantsString reports whether the declared type requests string-literal
// encoding, i.e. contains the token String.
func (d Directive) WantsString() bool {
	return hasStringToken(d.Type)
}

func hasStringToken(declaredType string) bool {
	for _, tok := range strings.FieldsFunc(declaredType, isNonWord) {
		if tok == "String" {
			return true
		}
	}

	return false
}

// FindDirectives returns every directive block in src, in order. A block
// is recognised only when the comment line starts at a line boundary
// (optionally indented) and the very next line is a matching declaration.
func FindDirectives(src string) []Directive {
	var out []Directive

	line := 1

	for pos := 0; pos < len(src); {
		end := lineEnd(src, pos)

		if d, ok := parseDirective(src, pos, end); ok {
			d.Line = line
			out = append(out, d)

			// Resume after the declaration line.
			next := lineEnd(src, end+1)
			line += 2
			pos = next + 1

			continue
		}

		line++
		pos = end + 1
	}

	return out
}

// parseDirective tries to read a directive whose comment occupies
// src[start:end]. end indexes the line's '\n' or len(src).
func parseDirective(src string, start, end int) (Directive, bool) {
	indent := skipBlank(src, start, end)
	comment := src[indent:end]

	if !strings.HasPrefix(comment, commentOpen) {
		return Directive{}, false
	}

	rest := comment[len(commentOpen):]

	n := 0
	for n < len(rest) && isAssetChar(rest[n]) {
		n++
	}

	if n == 0 || n >= len(rest) || rest[n] != '"' {
		return Directive{}, false
	}

	asset := rest[:n]

	// Only horizontal whitespace may follow the closing quote, and the
	// declaration must be on the next line.
	if strings.TrimLeft(rest[n+1:], " \t") != "" || end >= len(src) {
		return Directive{}, false
	}

	declStart := end + 1
	declEnd := lineEnd(src, declStart)
	hdrStart := skipBlank(src, declStart, declEnd)
	decl := src[hdrStart:declEnd]

	eq := strings.IndexByte(decl, '=')
	if eq < 0 {
		return Directive{}, false
	}

	typ, ident, array, ok := parseHeader(decl[:eq])
	if !ok {
		return Directive{}, false
	}

	tail := decl[eq+1:]

	semi := strings.LastIndexByte(tail, ';')
	if semi < 0 {
		return Directive{}, false
	}

	prefixEnd := hdrStart + eq + 1

	return Directive{
		Start:  indent,
		End:    prefixEnd + semi + 1,
		Asset:  asset,
		Type:   strings.TrimSpace(typ),
		Ident:  ident,
		Array:  array,
		Prefix: src[indent:prefixEnd],
		Expr:   tail[:semi],
	}, true
}

// parseHeader splits "<type> <ident>[[]] " (the text before "=") into its
// parts. Exactly one space must precede the "=".
func parseHeader(hdr string) (typ, ident string, array, ok bool) {
	if len(hdr) < 2 || hdr[len(hdr)-1] != ' ' {
		return "", "", false, false
	}

	h := hdr[:len(hdr)-1]

	if strings.HasSuffix(h, "[]") {
		array = true
		h = h[:len(h)-2]
	}

	i := len(h)
	for i > 0 && isIdentChar(h[i-1]) {
		i--
	}

	if i == len(h) || i < 2 || h[i-1] != ' ' {
		return "", "", false, false
	}

	typ = h[:i-1]
	for j := 0; j < len(typ); j++ {
		if !isTypeChar(typ[j]) {
			return "", "", false, false
		}
	}

	if strings.TrimSpace(typ) == "" {
		return "", "", false, false
	}

	return typ, h[i:], array, true
}

func lineEnd(src string, from int) int {
	if from >= len(src) {
		return len(src)
	}

	if i := strings.IndexByte(src[from:], '\n'); i >= 0 {
		return from + i
	}

	return len(src)
}

func skipBlank(src string, from, to int) int {
	for from < to && (src[from] == ' ' || src[from] == '\t') {
		from++
	}

	return from
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isAssetChar(c byte) bool {
	return isAlnum(c) || c == '.' || c == '/' || c == '_' || c == '-'
}

func isIdentChar(c byte) bool { return isAlnum(c) || c == '_' }

func isTypeChar(c byte) bool { return isAlnum(c) || c == ' ' }

func isNonWord(r rune) bool {
	return !(r < 0x80 && isIdentChar(byte(r)))
}
