// Package minify shrinks web assets before they are embedded into sketch
// sources. JavaScript and CSS go through esbuild's transform API, HTML
// through tdewolff's minifier with comments and redundant whitespace
// stripped.
package minify

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	tdminify "github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

// Kind identifies the minifier for an asset.
type Kind int

const (
	// None leaves the asset untouched.
	None Kind = iota
	// JS selects the JavaScript minifier.
	JS
	// CSS selects the stylesheet minifier.
	CSS
	// HTML selects the markup minifier.
	HTML
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case JS:
		return "js"
	case CSS:
		return "css"
	case HTML:
		return "html"
	default:
		return "none"
	}
}

// KindFor selects the minifier by the lower-cased file extension of path.
func KindFor(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js":
		return JS
	case ".css":
		return CSS
	case ".html":
		return HTML
	default:
		return None
	}
}

const htmlMediaType = "text/html"

// Minifier applies the minifier matching a Kind. It is safe for concurrent
// use.
type Minifier struct {
	m *tdminify.M
}

// New creates a Minifier.
func New() *Minifier {
	m := tdminify.New()
	m.Add(htmlMediaType, &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})

	return &Minifier{m: m}
}

// Minify returns src minified according to kind. Leading and trailing
// whitespace is trimmed from minified output; None returns src unchanged.
func (mf *Minifier) Minify(kind Kind, src string) (string, error) {
	switch kind {
	case JS:
		return transform(src, api.LoaderJS)
	case CSS:
		return transform(src, api.LoaderCSS)
	case HTML:
		var buf bytes.Buffer
		if err := mf.m.Minify(htmlMediaType, &buf, strings.NewReader(src)); err != nil {
			return "", fmt.Errorf("minifying html: %w", err)
		}

		return strings.TrimSpace(buf.String()), nil
	default:
		return src, nil
	}
}

func transform(src string, loader api.Loader) (string, error) {
	result := api.Transform(src, api.TransformOptions{
		Loader:            loader,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		LegalComments:     api.LegalCommentsNone,
		LogLevel:          api.LogLevelSilent,
		Charset:           api.CharsetUTF8,
		MinifyIdentifiers: false,
	})

	if len(result.Errors) > 0 {
		errs := make([]error, 0, len(result.Errors))
		for _, msg := range result.Errors {
			errs = append(errs, formatMessage(msg))
		}

		return "", fmt.Errorf("minifying %s: %w", loaderName(loader), errors.Join(errs...))
	}

	return strings.TrimSpace(string(result.Code)), nil
}

func formatMessage(msg api.Message) error {
	if msg.Location == nil {
		return errors.New(msg.Text)
	}

	return fmt.Errorf("%d:%d: %s", msg.Location.Line, msg.Location.Column, msg.Text)
}

func loaderName(loader api.Loader) string {
	if loader == api.LoaderCSS {
		return "css"
	}

	return "js"
}
