package chrome

import (
	"fmt"
	"sync"

	"github.com/phillip-england/attendhash/internal/envutil"
)

const ThemeKey = "theme"

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

func (t Theme) Toggled() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// KeyValueStore persists small flags across restarts.
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// LoadTheme reads the persisted flag. Anything other than "dark" is light.
func LoadTheme(store KeyValueStore) (Theme, error) {
	value, ok, err := store.Get(ThemeKey)
	if err != nil {
		return Light, fmt.Errorf("read theme: %w", err)
	}
	if ok && Theme(value) == Dark {
		return Dark, nil
	}
	return Light, nil
}

func ToggleTheme(store KeyValueStore, current Theme) (Theme, error) {
	next := current.Toggled()
	if err := store.Set(ThemeKey, string(next)); err != nil {
		return current, fmt.Errorf("save theme: %w", err)
	}
	return next, nil
}

type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// FileStore keeps flags in a dotenv-formatted file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := envutil.ReadDotEnv(f.path)
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := envutil.ReadDotEnv(f.path)
	if err != nil {
		return err
	}
	values[key] = value
	return envutil.WriteDotEnv(f.path, values, true)
}
