package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const manifestFile = "ragctl-manifest.json"

// manifest records the embedding model of each chromem collection. It lives
// beside the collection directories; chromem ignores plain files there.
// An empty dir keeps it in memory only.
type manifest struct {
	mu    sync.Mutex
	dir   string
	specs map[string]CollectionSpec
}

func loadManifest(dir string) (*manifest, error) {
	m := &manifest{dir: dir, specs: map[string]CollectionSpec{}}
	if dir == "" {
		return m, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m.specs); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}

func (m *manifest) get(name string) (CollectionSpec, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.specs[name]
	return s, ok
}

func (m *manifest) put(spec CollectionSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.specs[spec.Name] = spec
	if m.dir == "" {
		return nil
	}

	data, err := json.MarshalIndent(m.specs, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(m.dir, manifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return os.Rename(tmp, filepath.Join(m.dir, manifestFile))
}
