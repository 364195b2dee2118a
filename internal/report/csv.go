package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"hoist/internal/indexer"
)

// CSVHeader lists the columns written by WriteCSV.
var CSVHeader = []string{
	"depth", "name", "fullPath", "fileCount", "subfolderCount",
	"sizeMB", "lastModified", "isEmpty", "extensionHistogram",
}

// FolderStats summarizes the direct contents of one folder.
type FolderStats struct {
	Record         indexer.FolderRecord
	FileCount      int
	SubfolderCount int
	SizeBytes      int64
	LastModified   string
	IsEmpty        bool
	Extensions     map[string]int // Lowercase extension, "" for none
}

// Stat reads the direct entries of rec. Symlinks and other non-regular
// entries count as files with no size.
func Stat(rec indexer.FolderRecord) (FolderStats, error) {
	stats := FolderStats{Record: rec, Extensions: make(map[string]int)}

	info, err := os.Lstat(rec.Path)
	if err != nil {
		return stats, err
	}
	stats.LastModified = info.ModTime().Format("2006-01-02 15:04:05")

	entries, err := os.ReadDir(rec.Path)
	if err != nil {
		return stats, err
	}
	stats.IsEmpty = len(entries) == 0

	for _, entry := range entries {
		if entry.IsDir() {
			stats.SubfolderCount++
			continue
		}
		stats.FileCount++
		stats.Extensions[strings.ToLower(filepath.Ext(entry.Name()))]++
		if entry.Type().IsRegular() {
			if fi, err := entry.Info(); err == nil {
				stats.SizeBytes += fi.Size()
			}
		}
	}
	return stats, nil
}

// Histogram formats extension counts as ".jpg:1;.txt:3", sorted by
// extension. Files without an extension are listed as "(none)".
func (s FolderStats) Histogram() string {
	exts := make([]string, 0, len(s.Extensions))
	for ext := range s.Extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	parts := make([]string, 0, len(exts))
	for _, ext := range exts {
		label := ext
		if label == "" {
			label = "(none)"
		}
		parts = append(parts, label+":"+strconv.Itoa(s.Extensions[ext]))
	}
	return strings.Join(parts, ";")
}

// WriteCSV writes one row per indexed folder in tree order. Folders that
// vanished or became unreadable since the scan are left out.
func WriteCSV(w io.Writer, index *indexer.HierarchyIndex) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	records := index.All()
	sort.Slice(records, func(i, j int) bool {
		return treeLess(records[i].RelPath, records[j].RelPath)
	})

	for _, rec := range records {
		stats, err := Stat(rec)
		if err != nil {
			continue
		}
		row := []string{
			strconv.Itoa(rec.Depth),
			rec.Name,
			rec.Path,
			strconv.Itoa(stats.FileCount),
			strconv.Itoa(stats.SubfolderCount),
			strconv.FormatFloat(float64(stats.SizeBytes)/(1024*1024), 'f', 2, 64),
			stats.LastModified,
			strconv.FormatBool(stats.IsEmpty),
			stats.Histogram(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", rec.RelPath, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
