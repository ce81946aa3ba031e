package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type workItem struct {
	Path string
	Size int64
}

// discover expands the input paths into the compiled scripts to process.
// Globs are expanded, directories are searched recursively and the result is
// sorted largest first so long files do not start last.
func discover(inputs, extensions []string, stdout io.Writer) ([]workItem, error) {
	var items []workItem
	seen := make(map[string]bool)

	add := func(path string, info fs.FileInfo) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		items = append(items, workItem{Path: path, Size: info.Size()})
	}

	for _, input := range inputs {
		matches, err := filepath.Glob(input)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", input, err)
		}
		if len(matches) == 0 {
			fmt.Fprintf(stdout, "Input path not found: %s\n", input)
			continue
		}
		for _, match := range matches {
			if err := walk(match, extensions, add); err != nil {
				return nil, err
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Size > items[j].Size })
	return items, nil
}

func walk(root string, extensions []string, add func(string, fs.FileInfo)) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if hasExtension(root, extensions) {
			add(root, info)
		}
		return nil
	}

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && hasExtension(path, extensions) {
			add(path, info)
		}
		return nil
	})
}

func hasExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
