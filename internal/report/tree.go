// Package report renders scan and plan results for people: an indented
// folder tree, a per-folder CSV export, and a unified diff of the folder list
// before and after a plan.
package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"hoist/internal/indexer"
)

// Tree renders the indexed folders as an indented tree under the root,
// followed by the folder count per depth.
func Tree(index *indexer.HierarchyIndex) string {
	var b strings.Builder
	b.WriteString(index.Root())
	b.WriteString("\n")

	records := index.All()
	sort.Slice(records, func(i, j int) bool {
		return treeLess(records[i].RelPath, records[j].RelPath)
	})
	for _, rec := range records {
		b.WriteString(strings.Repeat("  ", rec.Depth))
		b.WriteString(rec.Name)
		b.WriteString("/\n")
	}

	b.WriteString("\n")
	for _, depth := range index.Depths() {
		fmt.Fprintf(&b, "depth %d: %d folder(s)\n", depth, index.Count(depth))
	}
	fmt.Fprintf(&b, "total: %d folder(s)\n", index.Total())

	if skipped := index.Skipped(); len(skipped) > 0 {
		fmt.Fprintf(&b, "skipped: %d unreadable path(s)\n", len(skipped))
	}
	return b.String()
}

// treeLess orders relative paths so every folder directly precedes its
// descendants: segment by segment, a parent before its children.
func treeLess(a, b string) bool {
	as := strings.Split(a, string(filepath.Separator))
	bs := strings.Split(b, string(filepath.Separator))
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}
