package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-rag/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestSplitParagraphs(t *testing.T) {
	got := SplitParagraphs("Hello world.\n\nI am Alex.\n\n  \n\nI code in Python.")
	assert.Equal(t, []string{"Hello world.", "I am Alex.", "I code in Python."}, got)
}

func TestSplitParagraphs_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"only whitespace", " \n\n\t\n\n ", nil},
		{"single paragraph", "  one line  ", []string{"one line"}},
		{"single newline kept", "line one\nline two", []string{"line one\nline two"}},
		{"leading and trailing blanks", "\n\nfirst\n\n\n\nsecond\n\n", []string{"first", "second"}},
		{"three newlines", "a\n\n\nb", []string{"a", "b"}},
		{"crlf", "Hello world.\r\n\r\nI am Alex.\r\n\r\n  \r\n\r\nI code in Python.\r\n", []string{"Hello world.", "I am Alex.", "I code in Python."}},
		{"crlf inside paragraph", "line one\r\nline two", []string{"line one\nline two"}},
		{"old mac line endings", "a\r\rb", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitParagraphs(tt.in))
		})
	}
}

func TestLoadCorpus(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "about.txt", "Hello world.\n\nI am Alex.\n\n  \n\nI code in Python.")
	writeFile(t, dir, "projects.txt", "Project one.\n\nProject two.")
	writeFile(t, dir, "notes.md", "# not loaded")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755))
	writeFile(t, filepath.Join(dir, "nested.txt"), "inner.txt", "not loaded either")

	chunks, err := LoadCorpus(dir)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"Hello world.", "I am Alex.", "I code in Python.",
		"Project one.", "Project two.",
	}, models.Texts(chunks))

	// per-file paragraph order is preserved
	texts := models.Texts(chunks)
	assert.Less(t, indexOf(texts, "Hello world."), indexOf(texts, "I am Alex."))
	assert.Less(t, indexOf(texts, "I am Alex."), indexOf(texts, "I code in Python."))
	assert.Less(t, indexOf(texts, "Project one."), indexOf(texts, "Project two."))
}

func TestLoadCorpus_CRLFFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "about.txt", "Hello world.\r\n\r\nI am Alex.\r\n\r\n  \r\n\r\nI code in Python.\r\n")

	chunks, err := LoadCorpus(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello world.", "I am Alex.", "I code in Python."}, models.Texts(chunks))
}

func TestLoadCorpus_FollowsSymlinks(t *testing.T) {
	target := t.TempDir()
	writeFile(t, target, "real.txt", "First.\n\nSecond.")

	dir := t.TempDir()
	if err := os.Symlink(filepath.Join(target, "real.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	// a link to a directory is still skipped
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "dirlink.txt")))

	chunks, err := LoadCorpus(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"First.", "Second."}, models.Texts(chunks))
}

func TestLoadCorpus_BrokenSymlink(t *testing.T) {
	dir := t.TempDir()
	if err := os.Symlink(filepath.Join(dir, "gone.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := LoadCorpus(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCorpus_EmptyDir(t *testing.T) {
	chunks, err := LoadCorpus(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestLoadCorpus_MissingDir(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func indexOf(items []string, want string) int {
	for i, s := range items {
		if s == want {
			return i
		}
	}
	return -1
}
