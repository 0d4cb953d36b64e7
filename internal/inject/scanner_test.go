package inject

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScanner(t *testing.T) *Scanner {
	t.Helper()

	return NewScanner(NewEncoder(nil, nil), nil)
}

func TestScan_InjectsWhenSourceChanged(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "style.css", "body {\n  color: red;\n}\n")

	src := filepath.Join(dir, "sketch.ino")
	text := "// @inject \"style.css\"\nString css = \"\";\n"

	s := newTestScanner(t)

	got, injections := s.Scan(text, src, src)
	assert.Equal(t, "// @inject \"style.css\"\nString css = \"body{color:red}\";\n", got)
	require.Len(t, injections, 1)
	assert.Equal(t, filepath.Join(dir, "style.css"), injections[0].Asset)
	assert.Equal(t, "css", injections[0].Ident)
	assert.Equal(t, 1, injections[0].Line)
	assert.Equal(t, ModeString, injections[0].Mode)
	assert.False(t, injections[0].Missing)
}

func TestScan_UnchangedBlockIsSilent(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "a.txt", "A")

	src := filepath.Join(dir, "sketch.ino")
	text := "// @inject \"a.txt\"\nString a = \"A\";\n"

	s := newTestScanner(t)

	got, injections := s.Scan(text, src, src)
	assert.Equal(t, text, got)
	assert.Empty(t, injections)
}

func TestScan_UnrelatedChangeLeavesBlocks(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "a.txt", "A")
	writeAsset(t, dir, "b.txt", "B")

	src := filepath.Join(dir, "sketch.ino")
	text := "// @inject \"a.txt\"\nString a = \"old\";\n// @inject \"b.txt\"\nString b = \"old\";\n"

	s := newTestScanner(t)

	got, injections := s.Scan(text, src, filepath.Join(dir, "b.txt"))
	assert.Equal(t, "// @inject \"a.txt\"\nString a = \"old\";\n// @inject \"b.txt\"\nString b = \"B\";\n", got)
	require.Len(t, injections, 1)
	assert.Equal(t, "b", injections[0].Ident)

	got, injections = s.Scan(text, src, filepath.Join(dir, "other.txt"))
	assert.Equal(t, text, got)
	assert.Empty(t, injections)
}

func TestScan_MissingAssetAlwaysReported(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "sketch.ino")
	text := "  // @inject \"web/gone.css\"\n  String css = \"\";\n"

	s := newTestScanner(t)

	// The changed path is unrelated, yet the diagnostic is still written.
	got, injections := s.Scan(text, src, filepath.Join(dir, "unrelated.txt"))

	want := "  // @inject \"web/gone.css\"\n  String css = \"File not found: " + filepath.Join(dir, "web", "gone.css") + "\";\n"
	assert.Equal(t, want, got)
	require.Len(t, injections, 1)
	assert.True(t, injections[0].Missing)
	assert.Equal(t, filepath.Join(dir, "web", "gone.css"), injections[0].Asset)

	// A second pass is a no-op.
	again, injections := s.Scan(got, src, src)
	assert.Equal(t, got, again)
	assert.Empty(t, injections)
}

func TestScan_KeepsSurroundingText(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "v.txt", "1.2.3")

	src := filepath.Join(dir, "sketch.ino")
	text := "#define X 1\n\n\t// @inject \"v.txt\"\n\tconst String version = \"0\"; // keep\nvoid loop() {}\n"

	s := newTestScanner(t)

	got, _ := s.Scan(text, src, src)
	assert.Equal(t, "#define X 1\n\n\t// @inject \"v.txt\"\n\tconst String version = \"1.2.3\"; // keep\nvoid loop() {}\n", got)
}

func TestScan_EncodeErrorLeavesBlock(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "app.js", "let = ;")

	src := filepath.Join(dir, "sketch.ino")
	text := "// @inject \"app.js\"\nString js = \"old\";\n"

	s := newTestScanner(t)

	got, injections := s.Scan(text, src, src)
	assert.Equal(t, text, got)
	assert.Empty(t, injections)
}

func TestScan_NoDirectives(t *testing.T) {
	s := newTestScanner(t)

	got, injections := s.Scan("void setup() {}\n", "/x/a.ino", "/x/a.ino")
	assert.Equal(t, "void setup() {}\n", got)
	assert.Nil(t, injections)
}

func TestResolveAsset(t *testing.T) {
	src := filepath.Join("/work", "sketch", "sketch.ino")

	assert.Equal(t, filepath.Join("/work", "sketch", "web", "a.js"), ResolveAsset(src, "web/a.js"))
	assert.Equal(t, filepath.Join("/work", "shared", "a.js"), ResolveAsset(src, "../shared/a.js"))
	assert.Equal(t, filepath.Join("/work", "sketch", "a.js"), ResolveAsset(src, "./a.js"))
}
