package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// maxDepth bounds the upward walk from this source file.
const maxDepth = 8

// ProjectRoot walks upwards from this source file to the directory holding
// go.mod. Binaries built elsewhere fall back to the working directory.
func ProjectRoot() (string, error) {
	if _, file, _, ok := runtime.Caller(0); ok {
		for dir, i := filepath.Dir(file), 0; i < maxDepth; i++ {
			if fileExists(filepath.Join(dir, "go.mod")) {
				return dir, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("confkit: getwd: %w", err)
	}
	return wd, nil
}

// MustProjectPath joins rel onto ProjectRoot and panics when the root cannot
// be found. Config defaults and tests use it to find etc/.
func MustProjectPath(rel string) string {
	root, err := ProjectRoot()
	if err != nil {
		panic(err)
	}
	return filepath.Join(root, rel)
}
