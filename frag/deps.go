package frag

import (
	"io/fs"
	"path"
	"sort"
)

// Dependencies returns the sorted transitive set of files included from root,
// root itself excluded. Content is not flattened and controls are not parsed,
// so a malformed annotation does not fail the walk; an unreadable file does.
func Dependencies(fsys fs.FS, root string) ([]string, error) {
	seen := map[string]bool{path.Base(root): true}
	var deps []string

	if err := walkIncludes(fsys, root, seen, &deps); err != nil {
		return nil, err
	}
	sort.Strings(deps)
	return deps, nil
}

// DependencySet returns the reftree of root: its dependencies plus root itself.
func DependencySet(fsys fs.FS, root string) (map[string]struct{}, error) {
	deps, err := Dependencies(fsys, root)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(deps)+1)
	set[path.Base(root)] = struct{}{}
	for _, d := range deps {
		set[d] = struct{}{}
	}
	return set, nil
}

func walkIncludes(fsys fs.FS, p string, seen map[string]bool, deps *[]string) error {
	lines, err := readLines(fsys, p)
	if err != nil {
		return err
	}

	for _, line := range lines {
		inc, ok := ScanInclude(line)
		if !ok || seen[inc] {
			continue
		}
		seen[inc] = true
		*deps = append(*deps, inc)

		if err := walkIncludes(fsys, path.Join(path.Dir(p), inc), seen, deps); err != nil {
			return err
		}
	}
	return nil
}
