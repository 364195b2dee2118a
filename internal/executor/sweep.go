package executor

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"hoist/internal/planner"
)

// sweepTree removes every empty directory below root.
func (e *Executor) sweepTree(root string, res *Result) {
	e.sweep(func(failed map[string]bool) []string {
		return findEmptyDirs(root, failed)
	}, res)
}

// sweepSelected removes those of targets that are empty. Nothing outside
// targets is touched, even when targets is empty.
func (e *Executor) sweepSelected(targets []string, res *Result) {
	e.sweep(func(failed map[string]bool) []string {
		return filterEmpty(targets, failed)
	}, res)
}

// sweep removes the directories candidates reports as empty until a full
// pass removes nothing. A directory that fails to go is not retried within
// the sweep.
func (e *Executor) sweep(candidates func(failed map[string]bool) []string, res *Result) {
	failed := make(map[string]bool)

	for {
		empties := candidates(failed)
		if len(empties) == 0 {
			return
		}
		sortDeepestFirst(empties)

		removed := 0
		for _, dir := range empties {
			item := ItemResult{Kind: KindSweep, Source: dir}
			if err := os.Remove(dir); err != nil {
				if os.IsNotExist(err) {
					continue
				}
				failed[dir] = true
				opErr := classify(err, dir)
				item.Err = opErr
				res.DeleteFailed++
				e.record(res, e.recorderCall(func(r Recorder) error {
					return r.RecordDeleteFailed(dir, string(opErr.Type), opErr.Error())
				}))
			} else {
				removed++
				res.Deleted++
				e.record(res, e.recorderCall(func(r Recorder) error {
					return r.RecordDirDelete(dir, true)
				}))
			}
			res.Items = append(res.Items, item)
		}

		if removed == 0 {
			return
		}
	}
}

// findEmptyDirs walks root and returns every directory below it with no
// entries. Unreadable subtrees are skipped.
func findEmptyDirs(root string, exclude map[string]bool) []string {
	var out []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root || !d.IsDir() || exclude[path] {
			return nil
		}
		if empty, _ := isEmptyDir(path); empty {
			out = append(out, path)
		}
		return nil
	})
	return out
}

func filterEmpty(paths []string, exclude map[string]bool) []string {
	var out []string
	for _, p := range paths {
		if exclude[p] {
			continue
		}
		if empty, _ := isEmptyDir(p); empty {
			out = append(out, p)
		}
	}
	return out
}

// isEmptyDir reports whether path is a real directory with no entries.
func isEmptyDir(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil || !info.IsDir() {
		return false, err
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}

// sortDeepestFirst orders paths by segment count descending, then lexically.
func sortDeepestFirst(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		di, dj := planner.SegmentCount(paths[i]), planner.SegmentCount(paths[j])
		if di != dj {
			return di > dj
		}
		return paths[i] < paths[j]
	})
}
