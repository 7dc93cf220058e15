// Package ignore reads gitignore-style files (.ragignore by default) and
// decides which paths a folder ingest skips.
package ignore

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Parser reads ignore files from a folder root.
type Parser struct {
	// IgnoreFiles are the file names looked up in the root, e.g. ".ragignore".
	IgnoreFiles []string

	// DefaultPatterns always apply, ahead of anything read from disk.
	DefaultPatterns []string
}

// NewParser creates a parser.
func NewParser(ignoreFiles, defaultPatterns []string) *Parser {
	return &Parser{IgnoreFiles: ignoreFiles, DefaultPatterns: defaultPatterns}
}

// DirPatterns turns bare directory names (".git", "node_modules") into
// patterns matching that directory at any depth.
func DirPatterns(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.Trim(strings.TrimSpace(n), "/")
		if n != "" {
			out = append(out, n+"/")
		}
	}
	return out
}

// ParseProject returns the default patterns followed by every pattern line
// of each ignore file present in root. Missing files are skipped.
func (p *Parser) ParseProject(root string) ([]string, error) {
	patterns := append([]string(nil), p.DefaultPatterns...)
	for _, name := range p.IgnoreFiles {
		lines, err := parseFile(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		patterns = append(patterns, lines...)
	}
	return deduplicate(patterns), nil
}

// Load parses root's ignore files into a Matcher.
func (p *Parser) Load(root string) (*Matcher, error) {
	patterns, err := p.ParseProject(root)
	if err != nil {
		return nil, err
	}
	return NewMatcher(patterns), nil
}

func parseFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

func deduplicate(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	result := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}
	return result
}

type rule struct {
	segments []string
	negate   bool
	dirOnly  bool
	anchored bool
}

// Matcher applies gitignore rules: the last matching rule wins, "!"
// re-includes, a trailing "/" matches directories only, and a pattern
// without an inner "/" matches the base name at any depth. "**" spans
// any number of path segments.
type Matcher struct {
	rules []rule
}

// NewMatcher compiles pattern lines; blank lines and comments are ignored.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{}
	for _, line := range patterns {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var r rule
		if strings.HasPrefix(line, "!") {
			r.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			r.dirOnly = true
			line = strings.TrimRight(line, "/")
		}
		if strings.HasPrefix(line, "/") {
			r.anchored = true
			line = strings.TrimLeft(line, "/")
		}
		if strings.Contains(line, "/") {
			r.anchored = true
		}
		if line == "" {
			continue
		}
		r.segments = strings.Split(line, "/")
		m.rules = append(m.rules, r)
	}
	return m
}

// Match reports whether rel (relative to the ingest root) is ignored.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil {
		return false
	}
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	parts := strings.Split(rel, "/")

	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if r.matches(parts) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r rule) matches(parts []string) bool {
	if !r.anchored {
		ok, _ := path.Match(r.segments[0], parts[len(parts)-1])
		return ok
	}
	return matchSegments(r.segments, parts)
}

func matchSegments(pattern, parts []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], parts[0]); !ok {
			return false
		}
		pattern, parts = pattern[1:], parts[1:]
	}
	return len(parts) == 0
}
