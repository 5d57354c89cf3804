// Package pathutil converts engine paths for display.
//
// The engine reports every file by its full filesystem path so results can be
// fed straight back into it. Output meant for people shows paths relative to
// the corpus root, in slash form.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails, the path is already
// relative, or it lies outside root.
//
// Examples:
//   - ToRelative("/data/corpus/a/0001.png", "/data/corpus") → "a/0001.png"
//   - ToRelative("/elsewhere/0001.png", "/data/corpus") → "/elsewhere/0001.png"
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		// e.g. different drives on Windows
		return absPath
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}
	return relPath
}

// Display renders path relative to rootDir with forward slashes
func Display(path, rootDir string) string {
	return filepath.ToSlash(ToRelative(path, rootDir))
}

// DisplayAll converts a slice of paths with Display. The input is not modified.
func DisplayAll(paths []string, rootDir string) []string {
	if paths == nil {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = Display(p, rootDir)
	}
	return out
}
