package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/backmassage/pngcrunch/internal/fsx"
)

// pngExt is matched case-sensitively: "x.PNG" is not picked up.
const pngExt = ".png"

// Discover expands paths into the sorted, de-duplicated list of PNG files
// to optimize. File arguments are kept when their extension is exactly
// ".png"; directories are walked recursively. A "<stem>_tmp.png" whose
// "<stem>.png" sits in the same directory is a leftover working copy and is
// not returned; without that sibling it is an ordinary PNG.
func Discover(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if filepath.Ext(path) != pngExt || fsx.IsLeftover(path) || seen[path] {
			return
		}
		seen[path] = true
		files = append(files, path)
	}

	for _, root := range paths {
		fi, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}
