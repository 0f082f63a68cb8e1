package processing

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// UploadedFile describes one file in the upload directory.
type UploadedFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Path     string `json:"path"`
}

// ListUploads returns the supported files directly inside dir, sorted by
// name. A missing directory yields an empty list.
func ListUploads(dir string) ([]UploadedFile, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}
	files := []UploadedFile{}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() || !IsSupported(m) {
			continue
		}
		files = append(files, UploadedFile{Filename: info.Name(), Size: info.Size(), Path: m})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	return files, nil
}

// ResolveFiles expands glob patterns (including **) into the supported
// files they match. Patterns without glob syntax are kept as-is so a
// missing file surfaces as a parse error later. Duplicates are dropped.
func ResolveFiles(patterns []string) ([]string, error) {
	var out dedup
	for _, p := range patterns {
		if !hasMeta(p) {
			out.add(p)
			continue
		}
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		for _, m := range matches {
			if IsSupported(m) {
				out.add(m)
			}
		}
	}
	return out.first(len(out.items)), nil
}

func hasMeta(p string) bool {
	for _, r := range p {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
