package planner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// maxPredictDepth bounds the will-be-empty recursion below any ancestor.
const maxPredictDepth = 256

// predictor evaluates whether a directory will be empty once the planned
// moves have run, reading listings only.
type predictor struct {
	list     Lister
	sources  map[string]bool
	targets  map[string]bool
	memo     map[string]bool
	visiting map[string]bool
}

// predictEmpty returns the ancestors of the moved sources, strictly below
// root, that will hold nothing after the moves. Deepest paths come first.
func predictEmpty(root string, moves []MoveOperation, list Lister) []string {
	p := &predictor{
		list:     list,
		sources:  make(map[string]bool, len(moves)),
		targets:  make(map[string]bool, len(moves)),
		memo:     make(map[string]bool),
		visiting: make(map[string]bool),
	}
	for _, m := range moves {
		p.sources[filepath.Clean(m.Source)] = true
		p.targets[filepath.Dir(filepath.Clean(m.Destination))] = true
	}

	ancestors := make(map[string]bool)
	for _, m := range moves {
		for dir := filepath.Dir(filepath.Clean(m.Source)); isStrictlyUnder(dir, root); dir = filepath.Dir(dir) {
			ancestors[dir] = true
		}
	}

	out := []string{}
	for dir := range ancestors {
		if p.insideSource(dir, root) {
			continue
		}
		if p.willBeEmpty(dir, 0) {
			out = append(out, dir)
		}
	}

	sortDeepestFirst(out)
	return out
}

// willBeEmpty reports whether every entry of dir is either a planned move
// source or a subdirectory that will itself be empty.
func (p *predictor) willBeEmpty(dir string, depth int) bool {
	if v, ok := p.memo[dir]; ok {
		return v
	}
	if depth > maxPredictDepth {
		return false
	}
	if p.targets[dir] {
		p.memo[dir] = false
		return false
	}

	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		real = dir
	}
	if p.visiting[real] {
		return false
	}
	p.visiting[real] = true
	defer delete(p.visiting, real)

	entries, err := p.list(dir)
	if err != nil {
		p.memo[dir] = false
		return false
	}

	empty := true
	for _, entry := range entries {
		child := filepath.Join(dir, entry.Name())
		if p.sources[child] {
			continue
		}
		if entry.IsDir() && entry.Type()&fs.ModeSymlink == 0 && p.willBeEmpty(child, depth+1) {
			continue
		}
		empty = false
		break
	}

	p.memo[dir] = empty
	return empty
}

// insideSource reports whether dir is a move source or lies inside one.
func (p *predictor) insideSource(dir, root string) bool {
	for d := dir; isStrictlyUnder(d, root); d = filepath.Dir(d) {
		if p.sources[d] {
			return true
		}
	}
	return false
}

// isStrictlyUnder reports whether path lies below root (root itself excluded).
func isStrictlyUnder(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// SegmentCount returns the number of separators in a cleaned path; deeper
// paths have larger counts.
func SegmentCount(path string) int {
	return strings.Count(filepath.Clean(path), string(filepath.Separator))
}

// sortDeepestFirst orders paths by segment count descending, then lexically.
func sortDeepestFirst(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		di, dj := SegmentCount(paths[i]), SegmentCount(paths[j])
		if di != dj {
			return di > dj
		}
		return paths[i] < paths[j]
	})
}
