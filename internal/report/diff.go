package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"hoist/internal/indexer"
	"hoist/internal/planner"
)

// PredictedFolders returns the root-relative folder list expected after plan
// runs: moves are applied in plan order, then delete targets and everything
// under them are dropped. Directories a full sweep might also remove beyond
// the predicted targets are not simulated.
func PredictedFolders(index *indexer.HierarchyIndex, plan *planner.PreviewPlan) ([]string, error) {
	root := index.Root()
	folders := make(map[string]struct{}, index.Total())
	for _, rec := range index.All() {
		folders[rec.RelPath] = struct{}{}
	}

	rel := func(abs string) (string, error) {
		r, err := filepath.Rel(root, abs)
		if err != nil {
			return "", fmt.Errorf("path %s is outside %s: %w", abs, root, err)
		}
		return r, nil
	}

	for _, move := range plan.Moves() {
		src, err := rel(move.Source)
		if err != nil {
			return nil, err
		}
		dst, err := rel(move.Destination)
		if err != nil {
			return nil, err
		}
		var moved []string
		for path := range folders {
			if path == src || isUnder(path, src) {
				moved = append(moved, path)
			}
		}
		for _, path := range moved {
			delete(folders, path)
			folders[dst+strings.TrimPrefix(path, src)] = struct{}{}
		}
	}

	for _, target := range plan.DeleteTargets() {
		t, err := rel(target)
		if err != nil {
			return nil, err
		}
		for path := range folders {
			if path == t || isUnder(path, t) {
				delete(folders, path)
			}
		}
	}

	out := make([]string, 0, len(folders))
	for path := range folders {
		out = append(out, path)
	}
	sort.Slice(out, func(i, j int) bool { return treeLess(out[i], out[j]) })
	return out, nil
}

// PreviewDiff renders a unified diff between the indexed folder list and the
// list predicted after plan. An empty string means the plan changes nothing.
func PreviewDiff(index *indexer.HierarchyIndex, plan *planner.PreviewPlan) (string, error) {
	after, err := PredictedFolders(index, plan)
	if err != nil {
		return "", err
	}

	before := make([]string, 0, index.Total())
	for _, rec := range index.All() {
		before = append(before, rec.RelPath)
	}
	sort.Slice(before, func(i, j int) bool { return treeLess(before[i], before[j]) })

	u := difflib.UnifiedDiff{
		A:        lines(before),
		B:        lines(after),
		FromFile: "before",
		ToFile:   "after",
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(u)
}

func lines(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.ToSlash(p) + "/\n"
	}
	return out
}

func isUnder(path, dir string) bool {
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
