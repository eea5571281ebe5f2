package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// DotEnvPaths lists where a .env file is looked for: the working directory,
// a bin/ layout two levels up, then the working directory's parents.
func DotEnvPaths() []string {
	paths := []string{
		".env",
		filepath.Join("..", "..", ".env"),
	}

	if workDir, err := os.Getwd(); err == nil {
		parentDir := filepath.Dir(workDir)
		grandParentDir := filepath.Dir(parentDir)

		paths = append(paths,
			filepath.Join(workDir, ".env"),
			filepath.Join(parentDir, ".env"),
			filepath.Join(grandParentDir, ".env"),
		)
	}
	return paths
}

// LoadDotEnv loads the first readable .env file from paths into the process
// environment. Variables already set are not overridden. It returns the
// absolute path of the loaded file, or "" when none was found.
func LoadDotEnv(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			abs, _ := filepath.Abs(path)
			return abs
		}
	}
	return ""
}
