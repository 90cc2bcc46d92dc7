// Package vpath presents a flat set of logical file paths as a folder
// hierarchy. Folders are never stored anywhere, they only exist while some
// file path runs through them.
package vpath

import (
	"errors"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Root is the canonical path of the top level directory
const Root = "/"

const maxPathLen = 1024

var (
	ErrPathEmpty   = errors.New("no path provided")
	ErrPathTooLong = errors.New("path is too long")
	ErrPathIsRoot  = errors.New("path must point to a file, not the root folder")
	ErrPathSegment = errors.New("path contains an invalid segment")
	ErrPathChars   = errors.New("path contains invalid characters")
)

// Pathed is anything that lives at a logical path
type Pathed interface {
	LogicalPath() string
}

// Entry is a listable file. Label is the name shown to the user and used
// for sorting.
type Entry interface {
	Pathed
	Label() string
}

// Folder is a synthetic directory derived from file paths
type Folder struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Segments splits p into its non-empty components
func Segments(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}

// Clean normalizes p into an absolute path without empty segments or a
// trailing slash. The empty string and "/" both clean to Root, so a path
// without any slashes lives at the top level.
func Clean(p string) string {
	segs := Segments(p)
	if len(segs) == 0 {
		return Root
	}

	return Root + strings.Join(segs, "/")
}

// Parent returns the immediate parent directory of p. Root has no parent
// and returns an empty string.
func Parent(p string) string {
	c := Clean(p)
	if c == Root {
		return ""
	}

	i := strings.LastIndexByte(c, '/')
	if i == 0 {
		return Root
	}

	return c[:i]
}

// Validate checks that p can be used as the logical path of a file
func Validate(p string) error {
	if strings.TrimSpace(p) == "" {
		return ErrPathEmpty
	}

	if len(p) > maxPathLen {
		return ErrPathTooLong
	}

	if !utf8.ValidString(p) || strings.IndexFunc(p, unicode.IsControl) >= 0 || strings.ContainsRune(p, '\\') {
		return ErrPathChars
	}

	segs := Segments(p)
	if len(segs) == 0 {
		return ErrPathIsRoot
	}

	for _, s := range segs {
		if s == "." || s == ".." || strings.TrimSpace(s) == "" {
			return ErrPathSegment
		}
	}

	return nil
}

// FoldersOf returns every directory implied by the paths of items, each one
// exactly once, ordered by path. Root is never included.
func FoldersOf[T Pathed](items []T) []Folder {
	seen := make(map[string]struct{})
	var folders []Folder

	for _, it := range items {
		segs := Segments(it.LogicalPath())

		// The final segment is the file itself
		for i := 1; i < len(segs); i++ {
			p := Root + strings.Join(segs[:i], "/")
			if _, ok := seen[p]; ok {
				continue
			}

			seen[p] = struct{}{}
			folders = append(folders, Folder{Path: p, Name: segs[i-1]})
		}
	}

	slices.SortFunc(folders, func(a, b Folder) int { return strings.Compare(a.Path, b.Path) })
	return folders
}

// ChildrenOf returns the folders and files whose immediate parent is dir.
// Deeper descendants are never included.
func ChildrenOf[T Pathed](dir string, items []T, folders []Folder) ([]Folder, []T) {
	dir = Clean(dir)

	var (
		childFolders []Folder
		childFiles   []T
	)

	for _, f := range folders {
		if Parent(f.Path) == dir {
			childFolders = append(childFolders, f)
		}
	}

	for _, it := range items {
		if Parent(it.LogicalPath()) == dir {
			childFiles = append(childFiles, it)
		}
	}

	return childFolders, childFiles
}

// Listing is the content of one directory in display order
type Listing[T Entry] struct {
	Path    string   `json:"path"`
	Parent  string   `json:"parent,omitempty"`
	Folders []Folder `json:"folders"`
	Files   []T      `json:"files"`
}

// List derives the folders from items and returns the content of dir with
// folders first and both groups sorted by name.
func List[T Entry](dir string, items []T) Listing[T] {
	dir = Clean(dir)
	folders, files := ChildrenOf(dir, items, FoldersOf(items))

	slices.SortStableFunc(folders, func(a, b Folder) int { return strings.Compare(a.Name, b.Name) })
	slices.SortStableFunc(files, func(a, b T) int { return strings.Compare(a.Label(), b.Label()) })

	if folders == nil {
		folders = []Folder{}
	}
	if files == nil {
		files = []T{}
	}

	return Listing[T]{
		Path:    dir,
		Parent:  Parent(dir),
		Folders: folders,
		Files:   files,
	}
}

// Exists reports whether dir is Root or one of the derived folders
func Exists(dir string, folders []Folder) bool {
	dir = Clean(dir)
	if dir == Root {
		return true
	}

	return slices.ContainsFunc(folders, func(f Folder) bool { return f.Path == dir })
}
