// Package filesystem routes every file nightcrawler reads or writes through
// one afero backend. Tests switch it to memory before touching anything.
package filesystem

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

var (
	mu      sync.RWMutex
	backend = afero.Afero{Fs: afero.NewOsFs()}
)

// API returns the backend in use.
func API() afero.Afero {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Use routes every later call through fs.
func Use(fs afero.Fs) {
	mu.Lock()
	defer mu.Unlock()
	backend = afero.Afero{Fs: fs}
}

func SetOsFs() {
	Use(afero.NewOsFs())
}

// SetMemMapFs keeps every file in memory.
func SetMemMapFs() {
	Use(afero.NewMemMapFs())
}

// CreateAll opens name for writing from scratch, creating missing parent
// directories. Recordings and exported listings are written this way.
func CreateAll(name string) (afero.File, error) {
	fs := API()
	if err := fs.MkdirAll(filepath.Dir(name), os.ModePerm); err != nil {
		return nil, err
	}

	return fs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}
