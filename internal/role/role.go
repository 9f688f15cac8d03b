// Package role loads the default answer persona from a ROLE.md file.
package role

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const FileName = "ROLE.md"

const maxRoleBytes = 8 << 10

var ErrTooLarge = errors.New("role file exceeds 8KiB")

// ReadFromDisk returns the contents of the nearest ROLE.md in the working
// directory or its parents. A missing file yields "" and no error.
func ReadFromDisk() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return Find(cwd)
}

func Find(startDir string) (string, error) {
	path, err := findInParents(startDir, FileName)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) > maxRoleBytes {
		return "", ErrTooLarge
	}
	return strings.TrimSpace(string(data)), nil
}

func findInParents(startDir string, filename string) (string, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fs.ErrNotExist
		}
		dir = parent
	}
}
