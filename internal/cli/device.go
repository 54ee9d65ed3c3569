package cli

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dukerupert/menuboard/internal/database"
	"github.com/dukerupert/menuboard/internal/remote"
)

// deviceFlags are shared by commands that act as a device.
type deviceFlags struct {
	APIURL   string
	APIKey   string
	CacheDir string
}

func (f *deviceFlags) client(opts *RootOptions) *remote.Client {
	url, key := opts.cfg.Device.APIURL, opts.cfg.Device.APIKey
	if f.APIURL != "" {
		url = f.APIURL
	}
	if f.APIKey != "" {
		key = f.APIKey
	}
	return remote.NewClient(remote.Config{BaseURL: url, APIKey: key})
}

// openLocal opens the device database under the cache directory.
func (f *deviceFlags) openLocal(opts *RootOptions) (string, *sql.DB, error) {
	dir := opts.cfg.Device.CacheDir
	if f.CacheDir != "" {
		dir = f.CacheDir
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := database.OpenLocal(filepath.Join(dir, "device.db"))
	if err != nil {
		return "", nil, fmt.Errorf("open device database: %w", err)
	}
	return dir, db, nil
}
