package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates base/name (or name alone when it is absolute or base is
// empty) and returns the resulting path.
func EnsureDir(base, name string) (string, error) {
	dir := name
	if base != "" && !filepath.IsAbs(name) {
		dir = filepath.Join(base, name)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}
