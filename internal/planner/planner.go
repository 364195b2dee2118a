package planner

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"hoist/internal/indexer"
)

// Lister reads the entries of one directory. Build uses os.ReadDir; tests and
// callers planning against a synthetic tree can pass their own to BuildWith.
type Lister func(dir string) ([]fs.DirEntry, error)

var (
	// ErrNoDepths is returned when the request selects no depth.
	ErrNoDepths = errors.New("no depths selected")
	// ErrNilIndex is returned when Build is called without an index.
	ErrNilIndex = errors.New("hierarchy index is nil")
)

// Build computes a plan for req against index. It reads directory listings
// of the destination directories and of the ancestors of moved folders, and
// never modifies the filesystem.
func Build(index *indexer.HierarchyIndex, req Request) (*PreviewPlan, error) {
	return BuildWith(index, req, readDir)
}

// BuildWith is Build with an explicit directory Lister.
func BuildWith(index *indexer.HierarchyIndex, req Request, list Lister) (*PreviewPlan, error) {
	if index == nil {
		return nil, ErrNilIndex
	}
	if list == nil {
		list = readDir
	}
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("invalid operation mode: %v", req.Mode)
	}
	if !req.DeleteRange.Valid() {
		return nil, fmt.Errorf("invalid delete range: %v", req.DeleteRange)
	}
	if !req.Destination.Valid() {
		return nil, fmt.Errorf("invalid destination mode: %v", req.Destination)
	}

	depths, err := normalizeDepths(req.Depths)
	if err != nil {
		return nil, err
	}

	plan := &PreviewPlan{
		root:          index.Root(),
		mode:          req.Mode,
		deleteRange:   req.DeleteRange,
		destination:   req.Destination,
		depths:        depths,
		moves:         []MoveOperation{},
		deleteTargets: []string{},
		warnings:      []string{},
	}

	if req.Mode == DeleteOnly {
		for _, depth := range depths {
			for _, rec := range index.Folders(depth) {
				plan.deleteTargets = append(plan.deleteTargets, rec.Path)
			}
		}
		return plan, nil
	}

	candidates := collectCandidates(index, depths)

	switch req.Destination {
	case ParentUp:
		plan.planParentUp(candidates, list)
	default:
		plan.planRoot(candidates, list)
	}

	plan.deleteTargets = predictEmpty(plan.root, plan.moves, list)
	return plan, nil
}

// normalizeDepths sorts and de-duplicates the selection.
func normalizeDepths(depths []int) ([]int, error) {
	if len(depths) == 0 {
		return nil, ErrNoDepths
	}
	seen := make(map[int]bool, len(depths))
	out := make([]int, 0, len(depths))
	for _, d := range depths {
		if d < 1 {
			return nil, fmt.Errorf("invalid depth %d: depths start at 1", d)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out, nil
}

// collectCandidates returns the records at the selected depths, deepest
// depth first so nested selections lift inner folders before their
// containers move.
func collectCandidates(index *indexer.HierarchyIndex, depths []int) []indexer.FolderRecord {
	var out []indexer.FolderRecord
	for i := len(depths) - 1; i >= 0; i-- {
		out = append(out, index.Folders(depths[i])...)
	}
	return out
}

// planRoot lands every candidate directly under the root. Names are prefixed
// with the flattened parent path and the taken-name set grows as the batch is
// planned.
func (p *PreviewPlan) planRoot(candidates []indexer.FolderRecord, list Lister) {
	taken := snapshotNames(p.root, list)

	for _, rec := range candidates {
		if rec.Depth < 2 {
			p.warnings = append(p.warnings, fmt.Sprintf("%s: already at top level", rec.RelPath))
			continue
		}
		desired := prefixedName(rec.RelParent, rec.Name)
		final, suffixed := UniqueName(desired, taken.has)
		taken.add(final)
		p.addMove(rec, filepath.Join(p.root, final), final, "", suffixed)
	}
}

// planParentUp lands every candidate in its grandparent. Each grandparent's
// names are read once and not updated within the batch, so two siblings
// lifted into the same grandparent can still collide at execute time.
func (p *PreviewPlan) planParentUp(candidates []indexer.FolderRecord, list Lister) {
	snapshots := make(map[string]nameSet)

	for _, rec := range candidates {
		if rec.Depth < 3 {
			p.warnings = append(p.warnings, fmt.Sprintf("%s: already at top level", rec.RelPath))
			continue
		}
		target := filepath.Dir(filepath.Dir(rec.Path))
		names, ok := snapshots[target]
		if !ok {
			names = snapshotNames(target, list)
			snapshots[target] = names
		}
		final, suffixed := UniqueName(rec.Name, names.has)
		p.addMove(rec, filepath.Join(target, final), final, target, suffixed)
	}
}

func (p *PreviewPlan) addMove(rec indexer.FolderRecord, dest, final, targetParent string, suffixed bool) {
	op := MoveOperation{
		Source:       rec.Path,
		Destination:  dest,
		FinalName:    final,
		OriginalName: rec.Name,
		Renamed:      final != rec.Name,
		TargetParent: targetParent,
	}
	p.moves = append(p.moves, op)

	if op.Renamed {
		msg := fmt.Sprintf("%s: renamed to %s", rec.RelPath, final)
		if suffixed {
			msg += " (name collision)"
		}
		p.warnings = append(p.warnings, msg)
	}
}
