package backend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// fileBackend stores one domain as a flat JSON object. The file is re-read
// on every call so that separate processes sharing a suite see each other's
// writes. Writers hold an advisory lock on <path>.lock across the
// read-modify-write so concurrent processes do not drop each other's entries.
type fileBackend struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

func newFileBackend(path string) *fileBackend {
	return &fileBackend{path: path, lock: flock.New(path + ".lock")}
}

// update runs fn on the current contents under the cross-process lock and
// saves the result when fn reports a change.
func (b *fileBackend) update(fn func(m map[string]any) bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating preferences dir: %w", err)
	}
	if err := b.lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", b.path, err)
	}
	defer b.lock.Unlock()

	m, err := b.load()
	if err != nil {
		return err
	}
	if !fn(m) {
		return nil
	}
	return b.save(m)
}

func (b *fileBackend) load() (map[string]any, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", b.path, err)
	}
	m := map[string]any{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", b.path, err)
	}
	return m, nil
}

// save writes to a temporary file in the same directory and renames it over
// the destination, so readers never observe a partial file.
func (b *fileBackend) save(m map[string]any) error {
	dir := filepath.Dir(b.path)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, b.path)
}

func (b *fileBackend) Get(key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.load()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		// Written by something other than this package; not a string entry.
		return "", false, nil
	}
	return s, true, nil
}

func (b *fileBackend) Set(key, val string) error {
	return b.update(func(m map[string]any) bool {
		m[key] = val
		return true
	})
}

func (b *fileBackend) Delete(key string) error {
	return b.update(func(m map[string]any) bool {
		if _, ok := m[key]; !ok {
			return false
		}
		delete(m, key)
		return true
	})
}

func (b *fileBackend) Keys() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys, nil
}

// FileResolver maps each domain to <dir>/<domain>.json.
type FileResolver struct {
	dir      string
	standard string

	mu      sync.Mutex
	domains map[string]*fileBackend
}

// NewFileResolver returns a resolver rooted at dir. An empty dir uses the
// XDG config location.
func NewFileResolver(dir, standard string) *FileResolver {
	if dir == "" {
		dir = DefaultFileDir()
	}
	return &FileResolver{
		dir:      dir,
		standard: standard,
		domains:  make(map[string]*fileBackend),
	}
}

// DefaultFileDir returns $XDG_CONFIG_HOME/prefs, falling back to ~/.config/prefs.
func DefaultFileDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "prefs")
}

func (r *FileResolver) domain(name string) *fileBackend {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.domains[name]
	if !ok {
		b = newFileBackend(filepath.Join(r.dir, name+".json"))
		r.domains[name] = b
	}
	return b
}

func (r *FileResolver) Standard() (Backend, error) {
	return r.domain(r.standard), nil
}

func (r *FileResolver) Suite(id string) (Backend, error) {
	if err := ValidateSuite(id, r.standard); err != nil {
		return nil, err
	}
	return r.domain(id), nil
}
