package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrConfigNotFound = errors.New("config file not found")

// LoadAndExpandYaml reads <baseDir>/<filename>.yml and expands environment
// references in it.
func LoadAndExpandYaml(baseDir, filename string) (string, error) {
	file := filepath.Join(baseDir, filename+".yml")
	raw, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s.yml not found in %s", ErrConfigNotFound, filename, baseDir)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}

	expanded, err := ExpandEnvStrict(string(raw))
	if err != nil {
		return "", fmt.Errorf("%s.yml: %w", filename, err)
	}
	return expanded, nil
}
