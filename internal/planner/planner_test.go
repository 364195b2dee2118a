package planner

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"hoist/internal/indexer"
)

func mkdirs(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(rel)), 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", rel, err)
		}
	}
}

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.WriteFile(path, []byte(rel), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", rel, err)
	}
}

func scanAndBuild(t *testing.T, root string, req Request) *PreviewPlan {
	t.Helper()
	index, err := indexer.Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	plan, err := Build(index, req)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return plan
}

func TestBuild_RootPrefixesParentPath(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/b/c")
	writeFile(t, root, "a/b/c/data.txt")

	plan := scanAndBuild(t, root, Request{Depths: []int{2}})

	moves := plan.Moves()
	if len(moves) != 1 {
		t.Fatalf("Expected 1 move, got %d", len(moves))
	}
	if moves[0].FinalName != "a_b" {
		t.Errorf("Expected final name a_b, got %q", moves[0].FinalName)
	}
	if moves[0].Destination != filepath.Join(root, "a_b") {
		t.Errorf("Unexpected destination %q", moves[0].Destination)
	}
	if !moves[0].Renamed || moves[0].OriginalName != "b" {
		t.Errorf("Expected a renamed move from b, got %+v", moves[0])
	}
	if moves[0].TargetParent != "" {
		t.Errorf("Root moves carry no target parent, got %q", moves[0].TargetParent)
	}

	targets := plan.DeleteTargets()
	if len(targets) != 1 || targets[0] != filepath.Join(root, "a") {
		t.Errorf("Expected a predicted empty, got %v", targets)
	}

	want := filepath.Join("a", "b") + ": renamed to a_b"
	if w := plan.Warnings(); len(w) != 1 || w[0] != want {
		t.Errorf("Expected warning %q, got %v", want, w)
	}
}

func TestBuild_PrefixDisambiguatesSameNames(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "x/target", "y/target")

	plan := scanAndBuild(t, root, Request{Depths: []int{2}})

	moves := plan.Moves()
	if len(moves) != 2 {
		t.Fatalf("Expected 2 moves, got %d", len(moves))
	}
	if moves[0].FinalName != "x_target" || moves[1].FinalName != "y_target" {
		t.Errorf("Expected x_target and y_target, got %q and %q", moves[0].FinalName, moves[1].FinalName)
	}
	for _, w := range plan.Warnings() {
		if strings.Contains(w, "name collision") {
			t.Errorf("Unexpected collision warning %q", w)
		}
	}
}

func TestBuild_CollidingPrefixedNamesGetSuffix(t *testing.T) {
	root := t.TempDir()
	// "x_y/t" and "x/y_t" both flatten to "x_y_t".
	mkdirs(t, root, "x_y/t", "x/y_t")

	plan := scanAndBuild(t, root, Request{Depths: []int{2}})

	moves := plan.Moves()
	if len(moves) != 2 {
		t.Fatalf("Expected 2 moves, got %d", len(moves))
	}
	if moves[0].FinalName != "x_y_t" {
		t.Errorf("Expected first move to keep x_y_t, got %q", moves[0].FinalName)
	}
	if moves[1].FinalName != "x_y_t_1" {
		t.Errorf("Expected second move to get x_y_t_1, got %q", moves[1].FinalName)
	}

	found := false
	for _, w := range plan.Warnings() {
		if strings.HasSuffix(w, "renamed to x_y_t_1 (name collision)") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected collision warning, got %v", plan.Warnings())
	}
}

func TestBuild_RootCollisionIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "A_B", "a/b")

	plan := scanAndBuild(t, root, Request{Depths: []int{2}})

	moves := plan.Moves()
	if len(moves) != 1 {
		t.Fatalf("Expected 1 move, got %d", len(moves))
	}
	if moves[0].FinalName != "a_b_1" {
		t.Errorf("Expected a_b_1, got %q", moves[0].FinalName)
	}
}

func TestBuild_RootSkipsTopLevelFolders(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a")

	plan := scanAndBuild(t, root, Request{Depths: []int{1}})

	if len(plan.Moves()) != 0 {
		t.Errorf("Expected no moves, got %v", plan.Moves())
	}
	if w := plan.Warnings(); len(w) != 1 || w[0] != "a: already at top level" {
		t.Errorf("Unexpected warnings %v", w)
	}
}

func TestBuild_ParentUp(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/b/c", "a/c", "a/x")

	plan := scanAndBuild(t, root, Request{Depths: []int{2, 3}, Destination: ParentUp})

	moves := plan.Moves()
	if len(moves) != 1 {
		t.Fatalf("Expected 1 move, got %v", moves)
	}
	m := moves[0]
	if m.Source != filepath.Join(root, "a", "b", "c") {
		t.Errorf("Unexpected source %q", m.Source)
	}
	if m.TargetParent != filepath.Join(root, "a") {
		t.Errorf("Expected target parent a, got %q", m.TargetParent)
	}
	if m.FinalName != "c_1" || m.Destination != filepath.Join(root, "a", "c_1") {
		t.Errorf("Expected c_1 in a, got %+v", m)
	}

	topLevel := 0
	for _, w := range plan.Warnings() {
		if strings.HasSuffix(w, ": already at top level") {
			topLevel++
		}
	}
	if topLevel != 3 {
		t.Errorf("Expected 3 top-level warnings for depth 2 folders, got %v", plan.Warnings())
	}

	// a/b holds only the moved c; a receives it and stays.
	targets := plan.DeleteTargets()
	if len(targets) != 1 || targets[0] != filepath.Join(root, "a", "b") {
		t.Errorf("Expected a/b predicted empty, got %v", targets)
	}
}

func TestBuild_ParentUpSnapshotNotUpdated(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "g/p1/same", "g/p2/same")

	plan := scanAndBuild(t, root, Request{Depths: []int{3}, Destination: ParentUp})

	moves := plan.Moves()
	if len(moves) != 2 {
		t.Fatalf("Expected 2 moves, got %d", len(moves))
	}
	if moves[0].FinalName != "same" || moves[1].FinalName != "same" {
		t.Errorf("Expected both to plan the unsuffixed name, got %q and %q", moves[0].FinalName, moves[1].FinalName)
	}
}

func TestBuild_DeleteOnly(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/b", "a/c", "d/e")

	plan := scanAndBuild(t, root, Request{Depths: []int{2}, Mode: DeleteOnly})

	if len(plan.Moves()) != 0 {
		t.Errorf("DeleteOnly produced moves: %v", plan.Moves())
	}
	want := []string{
		filepath.Join(root, "a", "b"),
		filepath.Join(root, "a", "c"),
		filepath.Join(root, "d", "e"),
	}
	if got := plan.DeleteTargets(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected targets %v, got %v", want, got)
	}
}

func TestBuild_NestedSelectionLiftsDeepestFirst(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/b/c")

	plan := scanAndBuild(t, root, Request{Depths: []int{2, 3}})

	moves := plan.Moves()
	if len(moves) != 2 {
		t.Fatalf("Expected 2 moves, got %d", len(moves))
	}
	if moves[0].OriginalName != "c" || moves[1].OriginalName != "b" {
		t.Errorf("Expected c before b, got %q then %q", moves[0].OriginalName, moves[1].OriginalName)
	}
	if moves[0].FinalName != "a_b_c" || moves[1].FinalName != "a_b" {
		t.Errorf("Unexpected names %q, %q", moves[0].FinalName, moves[1].FinalName)
	}
	// b is itself a source, so only a is reported.
	targets := plan.DeleteTargets()
	if len(targets) != 1 || targets[0] != filepath.Join(root, "a") {
		t.Errorf("Expected only a predicted empty, got %v", targets)
	}
}

func TestBuild_PredictionKeepsNonEmptyAncestors(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/b/c", "a/keep/empty")
	writeFile(t, root, "a/b/note.txt")

	plan := scanAndBuild(t, root, Request{Depths: []int{3}})

	var cMoved bool
	for _, m := range plan.Moves() {
		if m.OriginalName == "c" {
			cMoved = true
		}
	}
	if !cMoved {
		t.Fatalf("Expected a/b/c to be planned, got %v", plan.Moves())
	}
	// a/b keeps note.txt; a keeps a/b. a/keep is not an ancestor of a source.
	for _, target := range plan.DeleteTargets() {
		if target == filepath.Join(root, "a", "b") || target == filepath.Join(root, "a") {
			t.Errorf("Unexpected predicted target %q", target)
		}
	}
}

func TestBuild_EmptySubdirectoriesCountAsEmpty(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/b/c", "a/b/hollow/deeper")

	plan := scanAndBuild(t, root, Request{Depths: []int{3}})

	// Depth 3 holds c and hollow, both lifted; a/b and a end up empty.
	want := []string{filepath.Join(root, "a", "b"), filepath.Join(root, "a")}
	if got := plan.DeleteTargets(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestBuild_SymlinkKeepsDirectoryNonEmpty(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/b", "elsewhere")
	if err := os.Symlink(filepath.Join(root, "elsewhere"), filepath.Join(root, "a", "link")); err != nil {
		t.Skipf("Symlinks not supported: %v", err)
	}

	plan := scanAndBuild(t, root, Request{Depths: []int{2}})

	if len(plan.DeleteTargets()) != 0 {
		t.Errorf("A symlink entry should keep a non-empty, got %v", plan.DeleteTargets())
	}
}

func TestBuildWith_UnlistableDirectoryIsNonEmpty(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/b")

	index, err := indexer.Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	failing := func(dir string) ([]fs.DirEntry, error) {
		return nil, errors.New("listing disabled")
	}
	plan, err := BuildWith(index, Request{Depths: []int{2}}, failing)
	if err != nil {
		t.Fatalf("BuildWith failed: %v", err)
	}
	if len(plan.Moves()) != 1 {
		t.Errorf("Expected the move to be planned, got %v", plan.Moves())
	}
	if len(plan.DeleteTargets()) != 0 {
		t.Errorf("Expected no predicted targets, got %v", plan.DeleteTargets())
	}
}

func TestBuild_InvalidRequests(t *testing.T) {
	root := t.TempDir()
	index, err := indexer.Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	tests := []struct {
		name string
		req  Request
	}{
		{"no depths", Request{}},
		{"zero depth", Request{Depths: []int{0}}},
		{"bad mode", Request{Depths: []int{1}, Mode: OperationMode(42)}},
		{"bad range", Request{Depths: []int{1}, DeleteRange: DeleteRange(9)}},
		{"bad destination", Request{Depths: []int{1}, Destination: DestinationMode(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(index, tt.req); err == nil {
				t.Error("Expected an error")
			}
		})
	}

	if _, err := Build(nil, Request{Depths: []int{1}}); !errors.Is(err, ErrNilIndex) {
		t.Errorf("Expected ErrNilIndex, got %v", err)
	}
	if _, err := Build(index, Request{}); !errors.Is(err, ErrNoDepths) {
		t.Errorf("Expected ErrNoDepths, got %v", err)
	}
}

func TestBuild_MissingDepthContributesNothing(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a/b")

	plan := scanAndBuild(t, root, Request{Depths: []int{7}})
	if !plan.IsEmpty() {
		t.Errorf("Expected an empty plan, got %v", plan.Moves())
	}
	if !reflect.DeepEqual(plan.Depths(), []int{7}) {
		t.Errorf("Expected depths [7], got %v", plan.Depths())
	}
}

func TestUniqueName(t *testing.T) {
	taken := nameSet{}
	taken.add("Photos")
	taken.add("photos_1")

	name, suffixed := UniqueName("photos", taken.has)
	if name != "photos_2" || !suffixed {
		t.Errorf("Expected photos_2, got %q (suffixed=%v)", name, suffixed)
	}

	name, suffixed = UniqueName("music", taken.has)
	if name != "music" || suffixed {
		t.Errorf("Expected music unchanged, got %q (suffixed=%v)", name, suffixed)
	}
}

func TestParseEnums(t *testing.T) {
	if m, err := ParseOperationMode("Move-Only"); err != nil || m != MoveOnly {
		t.Errorf("ParseOperationMode: got %v, %v", m, err)
	}
	if r, err := ParseDeleteRange("selected-only"); err != nil || r != SelectedOnly {
		t.Errorf("ParseDeleteRange: got %v, %v", r, err)
	}
	if d, err := ParseDestinationMode(" parent-up "); err != nil || d != ParentUp {
		t.Errorf("ParseDestinationMode: got %v, %v", d, err)
	}
	if _, err := ParseOperationMode("sideways"); err == nil {
		t.Error("Expected error for unknown mode")
	}
	if MoveAndDeleteAll.String() != "move-and-delete-all" || NoDelete.String() != "no-delete" || Root.String() != "root" {
		t.Error("Unexpected enum names")
	}
}

// treeNode places one generated folder under an earlier node (or the root).
type treeNode struct {
	Parent int
	Name   string
	File   bool
}

func genTree() gopter.Gen {
	return gen.SliceOfN(10, gopter.CombineGens(
		gen.IntRange(0, 100),
		gen.OneConstOf("a", "b", "a_b", "c"),
		gen.Bool(),
	).Map(func(vals []interface{}) treeNode {
		return treeNode{
			Parent: vals[0].(int),
			Name:   vals[1].(string),
			File:   vals[2].(bool),
		}
	}))
}

// materialize creates the generated tree under a fresh temp root.
func materialize(nodes []treeNode) (string, error) {
	root, err := os.MkdirTemp("", "hoist-plan-*")
	if err != nil {
		return "", err
	}
	paths := make([]string, len(nodes))
	for i, n := range nodes {
		parent := root
		if pick := n.Parent % (i + 1); pick > 0 {
			parent = paths[pick-1]
		}
		paths[i] = filepath.Join(parent, n.Name)
		if err := os.MkdirAll(paths[i], 0755); err != nil {
			return root, err
		}
		if n.File {
			if err := os.WriteFile(filepath.Join(paths[i], "f.txt"), []byte("x"), 0644); err != nil {
				return root, err
			}
		}
	}
	return root, nil
}

func TestBuild_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("root destination names are unique and never clash with existing entries", prop.ForAll(
		func(nodes []treeNode, depth int) bool {
			root, err := materialize(nodes)
			defer os.RemoveAll(root)
			if err != nil {
				return false
			}
			index, err := indexer.Scan(root)
			if err != nil {
				return false
			}
			plan, err := Build(index, Request{Depths: []int{depth}})
			if err != nil {
				return false
			}

			existing := make(map[string]bool)
			entries, _ := os.ReadDir(root)
			for _, e := range entries {
				existing[strings.ToLower(e.Name())] = true
			}
			seen := make(map[string]bool)
			for _, m := range plan.Moves() {
				key := strings.ToLower(m.FinalName)
				if seen[key] || existing[key] {
					return false
				}
				seen[key] = true
			}
			return true
		},
		genTree(),
		gen.IntRange(1, 4),
	))

	properties.Property("parent-up names never clash with the pre-move snapshot", prop.ForAll(
		func(nodes []treeNode, depth int) bool {
			root, err := materialize(nodes)
			defer os.RemoveAll(root)
			if err != nil {
				return false
			}
			index, err := indexer.Scan(root)
			if err != nil {
				return false
			}
			plan, err := Build(index, Request{Depths: []int{depth}, Destination: ParentUp})
			if err != nil {
				return false
			}
			for _, m := range plan.Moves() {
				if _, err := os.Lstat(m.Destination); err == nil {
					return false
				}
				if filepath.Dir(m.Destination) != m.TargetParent {
					return false
				}
			}
			return true
		},
		genTree(),
		gen.IntRange(3, 5),
	))

	properties.Property("build is deterministic", prop.ForAll(
		func(nodes []treeNode, depth int, parentUp bool) bool {
			root, err := materialize(nodes)
			defer os.RemoveAll(root)
			if err != nil {
				return false
			}
			req := Request{Depths: []int{depth}, Mode: Custom, DeleteRange: SelectedOnly}
			if parentUp {
				req.Destination = ParentUp
			}

			first, err := indexer.Scan(root)
			if err != nil {
				return false
			}
			second, err := indexer.Scan(root)
			if err != nil {
				return false
			}
			p1, err1 := Build(first, req)
			p2, err2 := Build(second, req)
			if err1 != nil || err2 != nil {
				return false
			}
			return reflect.DeepEqual(p1, p2)
		},
		genTree(),
		gen.IntRange(1, 4),
		gen.Bool(),
	))

	properties.Property("delete-only never produces moves", prop.ForAll(
		func(nodes []treeNode, depth int) bool {
			root, err := materialize(nodes)
			defer os.RemoveAll(root)
			if err != nil {
				return false
			}
			index, err := indexer.Scan(root)
			if err != nil {
				return false
			}
			plan, err := Build(index, Request{Depths: []int{depth}, Mode: DeleteOnly})
			if err != nil {
				return false
			}
			return len(plan.Moves()) == 0 && len(plan.DeleteTargets()) == index.Count(depth)
		},
		genTree(),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
