package config

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/standardbeagle/gtc/internal/errors"
)

// IgnoreFile lists paths to leave out of every scan, one gitignore-style
// pattern per line
const IgnoreFile = ".gtcignore"

// LoadIgnore reads the ignore file at the corpus root and converts its lines
// to exclude globs. A missing file yields no patterns.
func LoadIgnore(fsys afero.Fs, root string) ([]string, error) {
	path := filepath.Join(root, IgnoreFile)
	content, err := afero.ReadFile(fsys, path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewConfigError("file", path, err)
	}
	return parseIgnore(content), nil
}

func parseIgnore(content []byte) []string {
	var patterns []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Negation cannot be expressed as an exclusion
		if strings.HasPrefix(line, "!") {
			continue
		}
		if p := ignoreToGlob(line); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// ignoreToGlob converts one gitignore-style line to a doublestar pattern
// on root-relative paths
func ignoreToGlob(line string) string {
	directory := strings.HasSuffix(line, "/")
	line = strings.TrimSuffix(line, "/")
	anchored := strings.HasPrefix(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return ""
	}

	if directory {
		if anchored {
			return line + "/**"
		}
		return "**/" + line + "/**"
	}
	if anchored {
		return line
	}
	return "**/" + line
}
