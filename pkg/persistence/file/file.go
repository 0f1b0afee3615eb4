// Package file provides file-based persistence for watches and their history.
package file

import (
	"context"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/dukex/watcher/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root string

	// mu serializes read-modify-write cycles on watch files.
	mu sync.Mutex
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// fileName makes an identifier safe to use as a single path element.
func fileName(id string) string {
	return url.PathEscape(id) + ".json"
}
