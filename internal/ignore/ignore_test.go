package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Match(t *testing.T) {
	m := NewMatcher([]string{
		"# comment",
		".git/",
		"node_modules/",
		"*.log",
		"/drafts",
		"docs/**/private",
		"secret*.txt",
		"!secret-ok.txt",
	})

	tests := []struct {
		name  string
		rel   string
		isDir bool
		want  bool
	}{
		{"git dir at root", ".git", true, true},
		{"nested node_modules", "web/node_modules", true, true},
		{"file named like dir rule", "node_modules", false, false},
		{"log anywhere", "a/b/run.log", false, true},
		{"anchored at root", "drafts", true, true},
		{"anchored not nested", "x/drafts", true, false},
		{"double star zero segments", "docs/private", true, true},
		{"double star many segments", "docs/a/b/private", true, true},
		{"plain file kept", "docs/spec.md", false, false},
		{"glob in base name", "notes/secret-1.txt", false, true},
		{"negation re-includes", "notes/secret-ok.txt", false, false},
		{"root itself", ".", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.rel, tt.isDir))
		})
	}
}

func TestMatcher_NilMatchesNothing(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("anything", false))
}

func TestDirPatterns(t *testing.T) {
	assert.Equal(t, []string{".git/", "node_modules/", "__pycache__/"},
		DirPatterns([]string{".git", "/node_modules/", " __pycache__ ", ""}))
}

func TestParseProject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".ragignore"),
		[]byte("# scratch files\n*.tmp\n\nnode_modules/\narchive/\n"), 0o644))

	p := NewParser([]string{".ragignore", ".missing"}, DirPatterns([]string{".git", "node_modules"}))
	patterns, err := p.ParseProject(root)
	require.NoError(t, err)
	assert.Equal(t, []string{".git/", "node_modules/", "*.tmp", "archive/"}, patterns)

	m, err := p.Load(root)
	require.NoError(t, err)
	assert.True(t, m.Match("a/b.tmp", false))
	assert.True(t, m.Match("archive", true))
	assert.False(t, m.Match("readme.md", false))
}

func TestParseProject_NoIgnoreFiles(t *testing.T) {
	p := NewParser([]string{".ragignore"}, []string{".git/"})
	patterns, err := p.ParseProject(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{".git/"}, patterns)
}
