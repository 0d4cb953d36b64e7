// Package detect classifies asset files as text or binary and decodes text
// assets to UTF-8 before they are embedded as string literals.
package detect

import (
	"bytes"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// textRoot is the MIME type every textual format descends from in the
// mimetype detection tree (text/html, application/json, text/javascript, ...).
const textRoot = "text/plain"

// Detector reports whether a file holds binary content.
type Detector struct{}

// New returns a Detector.
func New() *Detector { return &Detector{} }

// IsBinary reports whether the file at path is likely binary. Empty files
// are text. A file is binary when its detected MIME type has no text/plain
// ancestor.
func (d *Detector) IsBinary(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("inspecting %s: %w", path, err)
	}

	if info.Size() == 0 {
		return false, nil
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false, fmt.Errorf("detecting content type of %s: %w", path, err)
	}

	return !IsTextMIME(mt), nil
}

// IsTextMIME reports whether mt is text/plain or one of its descendants.
func IsTextMIME(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(textRoot) {
			return true
		}
	}

	return false
}

// DecodeText converts raw asset bytes into a UTF-8 string. A UTF-8 or
// UTF-16 byte order mark selects the source encoding and is stripped;
// without one the data is taken as UTF-8.
func DecodeText(data []byte) (string, error) {
	if !hasBOM(data) {
		return string(data), nil
	}

	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())

	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", fmt.Errorf("decoding text: %w", err)
	}

	return string(out), nil
}

var boms = [][]byte{
	{0xEF, 0xBB, 0xBF}, // UTF-8
	{0xFE, 0xFF},       // UTF-16 BE
	{0xFF, 0xFE},       // UTF-16 LE
}

func hasBOM(data []byte) bool {
	for _, bom := range boms {
		if bytes.HasPrefix(data, bom) {
			return true
		}
	}

	return false
}
