// Package planner computes side-effect-free move and delete plans over a
// hierarchy index.
package planner

import (
	"fmt"
	"strings"
)

// OperationMode selects what a plan does with the selected folders.
type OperationMode int

const (
	// MoveAndDeleteAll lifts folders and sweeps every empty directory afterwards.
	MoveAndDeleteAll OperationMode = iota
	// MoveOnly lifts folders and leaves emptied ancestors in place.
	MoveOnly
	// DeleteOnly removes the selected folders recursively.
	DeleteOnly
	// Custom lifts folders and sweeps according to the plan's DeleteRange.
	Custom
)

var modeNames = map[OperationMode]string{
	MoveAndDeleteAll: "move-and-delete-all",
	MoveOnly:         "move-only",
	DeleteOnly:       "delete-only",
	Custom:           "custom",
}

func (m OperationMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("OperationMode(%d)", int(m))
}

// Valid reports whether m is a known mode.
func (m OperationMode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// MovesFolders reports whether the mode produces move operations.
func (m OperationMode) MovesFolders() bool {
	return m == MoveAndDeleteAll || m == MoveOnly || m == Custom
}

// ParseOperationMode parses a mode name (case-insensitive).
func ParseOperationMode(s string) (OperationMode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for mode, name := range modeNames {
		if name == key {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown operation mode %q", s)
}

// DeleteRange limits the empty-folder sweep. Only the sweep consults it.
type DeleteRange int

const (
	// AllEmpty sweeps every empty directory under the root.
	AllEmpty DeleteRange = iota
	// SelectedOnly sweeps only the directories the plan predicted empty.
	SelectedOnly
	// NoDelete disables the sweep.
	NoDelete
)

var rangeNames = map[DeleteRange]string{
	AllEmpty:     "all-empty",
	SelectedOnly: "selected-only",
	NoDelete:     "no-delete",
}

func (r DeleteRange) String() string {
	if name, ok := rangeNames[r]; ok {
		return name
	}
	return fmt.Sprintf("DeleteRange(%d)", int(r))
}

// Valid reports whether r is a known range.
func (r DeleteRange) Valid() bool {
	_, ok := rangeNames[r]
	return ok
}

// ParseDeleteRange parses a delete range name (case-insensitive).
func ParseDeleteRange(s string) (DeleteRange, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for r, name := range rangeNames {
		if name == key {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown delete range %q", s)
}

// DestinationMode selects where lifted folders land.
type DestinationMode int

const (
	// Root lands lifted folders directly under the scan root.
	Root DestinationMode = iota
	// ParentUp lands lifted folders one level above their current parent.
	ParentUp
)

var destinationNames = map[DestinationMode]string{
	Root:     "root",
	ParentUp: "parent-up",
}

func (d DestinationMode) String() string {
	if name, ok := destinationNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DestinationMode(%d)", int(d))
}

// Valid reports whether d is a known destination mode.
func (d DestinationMode) Valid() bool {
	_, ok := destinationNames[d]
	return ok
}

// ParseDestinationMode parses a destination name (case-insensitive).
func ParseDestinationMode(s string) (DestinationMode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for d, name := range destinationNames {
		if name == key {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown destination mode %q", s)
}

// MoveOperation is one planned folder move.
type MoveOperation struct {
	Source       string // Absolute source path
	Destination  string // Absolute destination path
	FinalName    string // Name at the destination
	OriginalName string // Name at the source
	Renamed      bool   // FinalName differs from OriginalName
	TargetParent string // Explicit target parent, set for ParentUp only
}

// Request holds the inputs of a plan.
type Request struct {
	Depths      []int
	Mode        OperationMode
	DeleteRange DeleteRange
	Destination DestinationMode
}

// PreviewPlan is the immutable output of Build.
type PreviewPlan struct {
	root          string
	moves         []MoveOperation
	deleteTargets []string
	warnings      []string
	mode          OperationMode
	deleteRange   DeleteRange
	destination   DestinationMode
	depths        []int
}

// Root returns the root the plan was built against.
func (p *PreviewPlan) Root() string { return p.root }

// Mode returns the operation mode the plan was built for.
func (p *PreviewPlan) Mode() OperationMode { return p.mode }

// DeleteRange returns the sweep range recorded on the plan.
func (p *PreviewPlan) DeleteRange() DeleteRange { return p.deleteRange }

// Destination returns the destination mode the plan was built for.
func (p *PreviewPlan) Destination() DestinationMode { return p.destination }

// Moves returns a copy of the planned moves in execution order.
func (p *PreviewPlan) Moves() []MoveOperation {
	out := make([]MoveOperation, len(p.moves))
	copy(out, p.moves)
	return out
}

// DeleteTargets returns a copy of the delete targets. In DeleteOnly mode these
// are the selected folders; otherwise the ancestors predicted empty.
func (p *PreviewPlan) DeleteTargets() []string {
	out := make([]string, len(p.deleteTargets))
	copy(out, p.deleteTargets)
	return out
}

// Warnings returns a copy of the human-readable plan warnings.
func (p *PreviewPlan) Warnings() []string {
	out := make([]string, len(p.warnings))
	copy(out, p.warnings)
	return out
}

// Depths returns the selected depths, ascending.
func (p *PreviewPlan) Depths() []int {
	out := make([]int, len(p.depths))
	copy(out, p.depths)
	return out
}

// IsEmpty reports whether the plan would do nothing.
func (p *PreviewPlan) IsEmpty() bool {
	return len(p.moves) == 0 && len(p.deleteTargets) == 0
}
