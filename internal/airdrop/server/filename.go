package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sanitizeFilename strips any path components, keeping only the basename,
// as defense against directory traversal.
func sanitizeFilename(name string) string {
	name = filepath.Base(filepath.FromSlash(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "unnamed"
	}
	return name
}

// resolveCollision appends " (N)" before the extension, incrementing N from
// 1 until a name that does not exist in dir is found.
func resolveCollision(dir, name string) (string, error) {
	candidate := name
	for n := 1; ; n++ {
		full := filepath.Join(dir, candidate)
		_, err := os.Stat(full)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("server: stat %s: %w", full, err)
		}
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
	}
}
