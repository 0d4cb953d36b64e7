package inject

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/webinject/internal/logging"
	"github.com/hupe1980/webinject/internal/marker"
)

const htmlSketch = "#include <Arduino.h>\n\n// @inject \"page.html\"\nString page = \"\";\n\nvoid setup() {}\n"

func newTestBuilder(t *testing.T, dir string, mutate ...func(*Options)) (*Builder, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer

	opts := DefaultOptions(dir)
	opts.Status = logging.NewStatus(&out, dir, true)
	opts.Logger = logging.Discard()

	for _, m := range mutate {
		m(&opts)
	}

	b, err := NewBuilder(opts)
	require.NoError(t, err)

	return b, &out
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

func hashFile(t *testing.T, path string) [32]byte {
	t.Helper()

	return sha256.Sum256([]byte(readFile(t, path)))
}

func TestBuild_AssetChangeInjectsHTML(t *testing.T) {
	dir := t.TempDir()
	sketch := writeAsset(t, dir, "sketch.ino", htmlSketch)
	page := writeAsset(t, dir, "page.html", "<b>Hi</b>   <!-- c -->")

	b, out := newTestBuilder(t, dir)

	report, err := b.Build(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, page, report.Trigger)
	require.Len(t, report.Changed(), 1)

	assert.Contains(t, readFile(t, sketch), "String page = \"<b>Hi</b>\";\n")
	assert.Equal(t, "Inject: page.html\nUpdate: sketch.ino\n", out.String())
	assert.FileExists(t, sketch+marker.LockSuffix)
}

func TestBuild_Idempotent(t *testing.T) {
	dir := t.TempDir()
	sketch := writeAsset(t, dir, "sketch.ino", htmlSketch)
	page := writeAsset(t, dir, "page.html", "<b>Hi</b>")

	b, out := newTestBuilder(t, dir, func(o *Options) { o.Marker = nil })

	_, err := b.Build(context.Background(), page)
	require.NoError(t, err)

	first := hashFile(t, sketch)
	out.Reset()

	report, err := b.Build(context.Background(), page)
	require.NoError(t, err)
	assert.Empty(t, report.Changed())
	assert.Equal(t, first, hashFile(t, sketch))
	assert.Empty(t, out.String())

	report, err = b.Build(context.Background(), sketch)
	require.NoError(t, err)
	assert.Empty(t, report.Changed())
}

func TestBuild_ByteArray(t *testing.T) {
	dir := t.TempDir()
	sketch := writeAsset(t, dir, "sketch.ino", "// @inject \"data.bin\"\nconst char data[] = {};\n")
	writeAsset(t, dir, "data.bin", "Hi")

	b, _ := newTestBuilder(t, dir)

	_, err := b.Build(context.Background(), sketch)
	require.NoError(t, err)
	assert.Equal(t, "// @inject \"data.bin\"\nconst char data[] = {0x48, 0x69};\n", readFile(t, sketch))
}

func TestBuild_MissingAsset(t *testing.T) {
	dir := t.TempDir()
	sketch := writeAsset(t, dir, "sketch.ino", "// @inject \"gone.css\"\nString css = \"\";\n")

	b, out := newTestBuilder(t, dir)

	_, err := b.Build(context.Background(), sketch)
	require.NoError(t, err)

	want := "// @inject \"gone.css\"\nString css = \"File not found: " + filepath.Join(dir, "gone.css") + "\";\n"
	assert.Equal(t, want, readFile(t, sketch))
	assert.Equal(t, "Missing: gone.css\nUpdate: sketch.ino\n", out.String())
}

func TestBuild_OnlyRelevantDirectivesReencoded(t *testing.T) {
	dir := t.TempDir()
	sketch := writeAsset(t, dir, "sketch.ino",
		"// @inject \"a.txt\"\nString a = \"old\";\n// @inject \"b.txt\"\nString b = \"old\";\n")
	a := writeAsset(t, dir, "a.txt", "A")
	writeAsset(t, dir, "b.txt", "B")

	b, _ := newTestBuilder(t, dir)

	_, err := b.Build(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "// @inject \"a.txt\"\nString a = \"A\";\n// @inject \"b.txt\"\nString b = \"old\";\n", readFile(t, sketch))
}

func TestBuild_UnrelatedFileChangesNothing(t *testing.T) {
	dir := t.TempDir()
	sketch := writeAsset(t, dir, "sketch.ino", "// @inject \"a.txt\"\nString a = \"old\";\n")
	writeAsset(t, dir, "a.txt", "A")
	notes := writeAsset(t, dir, "notes.md", "hello")

	b, _ := newTestBuilder(t, dir)

	before := hashFile(t, sketch)

	report, err := b.Build(context.Background(), notes)
	require.NoError(t, err)
	assert.Empty(t, report.Changed())
	assert.Equal(t, before, hashFile(t, sketch))
	assert.NoFileExists(t, sketch+marker.LockSuffix)
}

func TestBuild_SourceChangeRewritesOnlyThatSource(t *testing.T) {
	dir := t.TempDir()
	block := "// @inject \"a.txt\"\nString a = \"old\";\n"
	one := writeAsset(t, dir, "one.ino", block)
	two := writeAsset(t, dir, "lib/two.cpp", "// @inject \"../a.txt\"\nString a = \"old\";\n")
	writeAsset(t, dir, "a.txt", "A")

	b, _ := newTestBuilder(t, dir)

	report, err := b.Build(context.Background(), one)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "// @inject \"a.txt\"\nString a = \"A\";\n", readFile(t, one))
	assert.Equal(t, "// @inject \"../a.txt\"\nString a = \"old\";\n", readFile(t, two))
}

func TestBuild_AssetSharedAcrossSources(t *testing.T) {
	dir := t.TempDir()
	one := writeAsset(t, dir, "one.ino", "// @inject \"a.txt\"\nString a = \"old\";\n")
	two := writeAsset(t, dir, "lib/two.cpp", "// @inject \"../a.txt\"\nString a = \"old\";\n")
	asset := writeAsset(t, dir, "a.txt", "A")

	b, _ := newTestBuilder(t, dir)

	report, err := b.Build(context.Background(), asset)
	require.NoError(t, err)
	assert.Len(t, report.Changed(), 2)
	assert.Contains(t, readFile(t, one), "String a = \"A\";")
	assert.Contains(t, readFile(t, two), "String a = \"A\";")
}

func TestBuild_SkipsFailingFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeAsset(t, dir, "good.ino", "// @inject \"a.txt\"\nString a = \"old\";\n")
	asset := writeAsset(t, dir, "a.txt", "A")

	if err := os.Symlink(filepath.Join(dir, "nowhere.ino"), filepath.Join(dir, "broken.ino")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	b, _ := newTestBuilder(t, dir)

	report, err := b.Build(context.Background(), asset)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "broken.ino")

	require.Len(t, report.Changed(), 1)
	assert.Equal(t, good, report.Changed()[0].Path)
	assert.Contains(t, readFile(t, good), "String a = \"A\";")
}

func TestBuild_FailedWriteIsNotAnnounced(t *testing.T) {
	dir := t.TempDir()
	sketch := writeAsset(t, dir, "sketch.ino", htmlSketch)
	writeAsset(t, dir, "page.html", "<b>Hi</b>")

	b, out := newTestBuilder(t, dir)
	b.rewriter.writeFile = func(string, []byte, fs.FileMode) error {
		return errors.New("disk full")
	}

	report, err := b.Build(context.Background(), sketch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, report.Changed())

	assert.Empty(t, out.String())
	assert.Equal(t, htmlSketch, readFile(t, sketch))
	assert.NoFileExists(t, sketch+marker.LockSuffix)
}

func TestBuild_PreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	sketch := writeAsset(t, dir, "sketch.ino", htmlSketch)
	writeAsset(t, dir, "page.html", "<i>x</i>")
	require.NoError(t, os.Chmod(sketch, 0o640))

	b, _ := newTestBuilder(t, dir)

	_, err := b.Build(context.Background(), sketch)
	require.NoError(t, err)

	info, err := os.Stat(sketch)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o640), info.Mode().Perm())
}

func TestBuild_DryRun(t *testing.T) {
	dir := t.TempDir()
	sketch := writeAsset(t, dir, "sketch.ino", htmlSketch)
	writeAsset(t, dir, "page.html", "<b>Hi</b>")

	b, out := newTestBuilder(t, dir, func(o *Options) { o.DryRun = true })

	report, err := b.Build(context.Background(), sketch)
	require.NoError(t, err)
	require.Len(t, report.Changed(), 1)

	diff := report.Changed()[0].Diff
	assert.Contains(t, diff, "--- a/sketch.ino")
	assert.Contains(t, diff, "+++ b/sketch.ino")
	assert.Contains(t, diff, "-String page = \"\";")
	assert.Contains(t, diff, "+String page = \"<b>Hi</b>\";")

	assert.Equal(t, htmlSketch, readFile(t, sketch))
	assert.NoFileExists(t, sketch+marker.LockSuffix)
	assert.NotContains(t, out.String(), "Update:")
}

func TestBuild_MemoryMarker(t *testing.T) {
	dir := t.TempDir()
	sketch := writeAsset(t, dir, "sketch.ino", htmlSketch)
	page := writeAsset(t, dir, "page.html", "<b>Hi</b>")

	m := marker.NewMemory(time.Minute)
	b, _ := newTestBuilder(t, dir, func(o *Options) { o.Marker = m })

	_, err := b.Build(context.Background(), page)
	require.NoError(t, err)
	assert.NoFileExists(t, sketch+marker.LockSuffix)

	ok, err := m.Consume(sketch)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuild_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	sketch := writeAsset(t, dir, "sketch.ino", htmlSketch)
	page := writeAsset(t, dir, "page.html", "<b>Hi</b>")

	b, _ := newTestBuilder(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Build(ctx, page)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, htmlSketch, readFile(t, sketch))
}

func TestBuildAll(t *testing.T) {
	dir := t.TempDir()
	one := writeAsset(t, dir, "one.ino", "// @inject \"a.txt\"\nString a = \"old\";\n")
	two := writeAsset(t, dir, "sub/two.h", "// @inject \"b.bin\"\nconst char b[] = {};\n")
	writeAsset(t, dir, "a.txt", "A")
	writeAsset(t, dir, "sub/b.bin", "B")

	b, _ := newTestBuilder(t, dir)

	report, err := b.BuildAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Trigger)
	assert.Len(t, report.Changed(), 2)
	assert.Contains(t, readFile(t, one), "String a = \"A\";")
	assert.Contains(t, readFile(t, two), "const char b[] = {0x42};")
}

func TestNewBuilder_Errors(t *testing.T) {
	dir := t.TempDir()
	file := writeAsset(t, dir, "sketch.ino", "")

	_, err := NewBuilder(Options{Root: file})
	require.ErrorIs(t, err, ErrNotDirectory)

	_, err = NewBuilder(Options{Root: filepath.Join(dir, "missing")})
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestNewBuilder_Defaults(t *testing.T) {
	b, err := NewBuilder(Options{Root: t.TempDir()})
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(b.Root()))
	assert.True(t, b.IsSource("x/sketch.ino"))
	assert.True(t, b.IsSource("lib.CPP"))
	assert.False(t, b.IsSource("page.html"))
}

func TestSources(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "sketch.ino", "")
	writeAsset(t, dir, "MAIN.INO", "")
	writeAsset(t, dir, "lib/x.cpp", "")
	writeAsset(t, dir, "lib/x.h", "")
	writeAsset(t, dir, "lib/x.c", "")
	writeAsset(t, dir, "README.md", "")
	writeAsset(t, dir, "web/page.html", "")
	writeAsset(t, dir, ".git/hook.ino", "")
	writeAsset(t, dir, "sketch.ino.lock", "")

	b, _ := newTestBuilder(t, dir)

	sources, err := b.Sources()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "sketch.ino"),
		filepath.Join(dir, "MAIN.INO"),
		filepath.Join(dir, "lib", "x.cpp"),
		filepath.Join(dir, "lib", "x.h"),
		filepath.Join(dir, "lib", "x.c"),
	}, sources)
}

func TestSources_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "sketch.ino", "")
	writeAsset(t, dir, "main.hpp", "")

	b, _ := newTestBuilder(t, dir, func(o *Options) { o.Extensions = []string{".hpp"} })

	sources, err := b.Sources()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "main.hpp")}, sources)
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "sketch.ino",
		"// @inject \"web/page.html\"\nString page = \"\";\n\n// @inject \"logo.png\"\nconst char logo[] = {};\n")
	writeAsset(t, dir, "web/page.html", "<p>x</p>")

	b, _ := newTestBuilder(t, dir)

	entries, err := b.Inspect()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, Entry{
		Source: "sketch.ino",
		Line:   1,
		Type:   "String",
		Ident:  "page",
		Asset:  filepath.Join("web", "page.html"),
		Exists: true,
		Mode:   "string",
	}, entries[0])

	assert.Equal(t, Entry{
		Source: "sketch.ino",
		Line:   4,
		Type:   "const char",
		Ident:  "logo",
		Array:  true,
		Asset:  "logo.png",
	}, entries[1])
}

func TestInspect_Empty(t *testing.T) {
	b, _ := newTestBuilder(t, t.TempDir())

	entries, err := b.Inspect()
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
