// Package scanner enumerates importable files beneath a directory tree.
// It is pure with respect to the data store: no database access, no writes.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"reelvault/internal/media"
)

// Result describes a completed scan.
type Result struct {
	Files      []string
	TotalCount int
}

// Scan walks root recursively and returns every supported media, sidecar and
// audio file in deterministic (sorted) order. Unsupported files are skipped
// silently; unreadable subdirectories abort the scan with an error.
func Scan(root string) (Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Result{}, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		if media.Supported(root) {
			return Result{Files: []string{root}, TotalCount: 1}, nil
		}
		return Result{}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		if media.Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Strings(files)
	return Result{Files: files, TotalCount: len(files)}, nil
}

// Expand resolves a mixed list of file and directory paths into a flat,
// deduplicated file list. Directories are scanned recursively; explicit file
// paths are kept only when supported.
func Expand(paths []string) (Result, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, path := range paths {
		result, err := Scan(path)
		if err != nil {
			return Result{}, err
		}
		for _, file := range result.Files {
			if _, ok := seen[file]; ok {
				continue
			}
			seen[file] = struct{}{}
			files = append(files, file)
		}
	}
	sort.Strings(files)
	return Result{Files: files, TotalCount: len(files)}, nil
}
