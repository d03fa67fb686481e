package confkit

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

// Switches read from the process environment before any file is merged.
const (
	envNoDotenv = "NO_DOTENV"
	envOverload = "DOTENV_OVERLOAD"
	envFile     = "ENV_FILE"
)

var dotenvOnce sync.Once

// LoadDotenvOnce merges .env files into the process environment so the config
// loaders can expand ${VAR} references to API keys and the wallet password.
// ENV_FILE names a single file; otherwise the working directory and its parents
// up to the repository root are searched and the nearest file wins.
func LoadDotenvOnce() {
	dotenvOnce.Do(func() {
		if os.Getenv(envNoDotenv) == "1" {
			return
		}
		var files []string
		if f := os.Getenv(envFile); f != "" {
			files = []string{f}
		} else if wd, err := os.Getwd(); err == nil {
			files = dotenvFiles(wd)
		}
		mergeDotenv(files, os.Getenv(envOverload) == "1")
	})
}

// dotenvFiles lists the .env files from start upwards, nearest first. The walk
// stops at a directory holding go.mod or .git.
func dotenvFiles(start string) []string {
	var out []string
	dir := start
	for i := 0; i < maxDepth; i++ {
		if candidate := filepath.Join(dir, ".env"); fileExists(candidate) {
			out = append(out, candidate)
		}
		if fileExists(filepath.Join(dir, "go.mod")) || fileExists(filepath.Join(dir, ".git")) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return out
}

// mergeDotenv applies files nearest first. Without overload, variables that
// are already set are kept and the first file to define a key wins. With
// overload every file is applied farthest first so the nearest still wins.
func mergeDotenv(files []string, overload bool) {
	if len(files) == 0 {
		return
	}
	if !overload {
		_ = godotenv.Load(files...)
		return
	}
	reversed := make([]string, 0, len(files))
	for i := len(files) - 1; i >= 0; i-- {
		reversed = append(reversed, files[i])
	}
	_ = godotenv.Overload(reversed...)
}
