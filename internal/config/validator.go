package config

import (
	"os"
	"path/filepath"
	"strconv"

	"hoist/internal/planner"
)

// ValidationSeverity represents the severity of a validation issue.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ConfigValidationError represents a single validation issue.
type ConfigValidationError struct {
	Field    string             // Config field with issue (e.g., "depths[0]")
	Message  string             // Human-readable description
	Severity ValidationSeverity // "error" or "warning"
}

// ValidationResult contains all validation findings.
type ValidationResult struct {
	Errors   []ConfigValidationError
	Warnings []ConfigValidationError
	Valid    bool // True if no errors (warnings OK)
}

// ValidateConfig checks the configuration and returns every finding, not just
// the first.
func ValidateConfig(cfg *Configuration) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ConfigValidationError{},
		Warnings: []ConfigValidationError{},
	}

	var findings []ConfigValidationError
	findings = append(findings, ValidateDepths(cfg)...)
	findings = append(findings, ValidateModes(cfg)...)
	findings = append(findings, ValidatePaths(cfg)...)

	for _, f := range findings {
		if f.Severity == SeverityError {
			result.Errors = append(result.Errors, f)
		} else {
			result.Warnings = append(result.Warnings, f)
		}
	}
	result.Valid = len(result.Errors) == 0

	return result
}

// ValidateDepths checks that at least one depth is selected and that every
// depth is positive. Repeated depths are a warning.
func ValidateDepths(cfg *Configuration) []ConfigValidationError {
	var errs []ConfigValidationError

	if len(cfg.Depths) == 0 {
		return append(errs, ConfigValidationError{
			Field:    "depths",
			Message:  "depths must contain at least one depth",
			Severity: SeverityError,
		})
	}

	seen := make(map[int]int)
	for i, d := range cfg.Depths {
		if d < 1 {
			errs = append(errs, ConfigValidationError{
				Field:    formatField("depths", i),
				Message:  "depth must be at least 1, got " + strconv.Itoa(d),
				Severity: SeverityError,
			})
			continue
		}
		if first, ok := seen[d]; ok {
			errs = append(errs, ConfigValidationError{
				Field:    formatField("depths", i),
				Message:  "depth " + strconv.Itoa(d) + " repeats depths[" + strconv.Itoa(first) + "]",
				Severity: SeverityWarning,
			})
			continue
		}
		seen[d] = i
	}

	return errs
}

// ValidateModes checks the enum fields and flags combinations where one
// setting is ignored.
func ValidateModes(cfg *Configuration) []ConfigValidationError {
	var errs []ConfigValidationError

	mode, modeErr := planner.ParseOperationMode(cfg.Mode)
	if modeErr != nil {
		errs = append(errs, ConfigValidationError{
			Field:    "mode",
			Message:  modeErr.Error() + `. Must be "move-and-delete-all", "move-only", "delete-only", or "custom"`,
			Severity: SeverityError,
		})
	}
	deleteRange, rangeErr := planner.ParseDeleteRange(cfg.DeleteRange)
	if rangeErr != nil {
		errs = append(errs, ConfigValidationError{
			Field:    "deleteRange",
			Message:  rangeErr.Error() + `. Must be "all-empty", "selected-only", or "no-delete"`,
			Severity: SeverityError,
		})
	}
	destination, destErr := planner.ParseDestinationMode(cfg.Destination)
	if destErr != nil {
		errs = append(errs, ConfigValidationError{
			Field:    "destination",
			Message:  destErr.Error() + `. Must be "root" or "parent-up"`,
			Severity: SeverityError,
		})
	}

	if modeErr == nil && rangeErr == nil && mode != planner.Custom && deleteRange != planner.AllEmpty {
		errs = append(errs, ConfigValidationError{
			Field:    "deleteRange",
			Message:  "deleteRange is only used in custom mode and is ignored for " + mode.String(),
			Severity: SeverityWarning,
		})
	}
	if modeErr == nil && destErr == nil && mode == planner.DeleteOnly && destination != planner.Root {
		errs = append(errs, ConfigValidationError{
			Field:    "destination",
			Message:  "destination is ignored for delete-only",
			Severity: SeverityWarning,
		})
	}

	if cfg.Journal.RotationSize < 0 {
		errs = append(errs, ConfigValidationError{
			Field:    "journal.rotationSizeBytes",
			Message:  "rotationSizeBytes cannot be negative",
			Severity: SeverityError,
		})
	}
	if cfg.Journal.RetainSegments < 0 {
		errs = append(errs, ConfigValidationError{
			Field:    "journal.retainSegments",
			Message:  "retainSegments cannot be negative",
			Severity: SeverityError,
		})
	} else if cfg.Journal.RetainSegments > 0 && cfg.Journal.RotationSize == 0 {
		errs = append(errs, ConfigValidationError{
			Field:    "journal.retainSegments",
			Message:  "has no effect while rotation is disabled",
			Severity: SeverityWarning,
		})
	}

	return errs
}

// ValidatePaths warns about journal and log locations that cannot be
// written. A run still proceeds; the session reports the failure when it
// opens them.
func ValidatePaths(cfg *Configuration) []ConfigValidationError {
	var errs []ConfigValidationError

	if cfg.Journal.Directory != "" && !isCreatable(cfg.Journal.Directory) {
		errs = append(errs, ConfigValidationError{
			Field:    "journal.directory",
			Message:  "journal directory is not writable: " + cfg.Journal.Directory,
			Severity: SeverityWarning,
		})
	}
	if cfg.LogFile != "" && !isCreatable(filepath.Dir(cfg.LogFile)) {
		errs = append(errs, ConfigValidationError{
			Field:    "logFile",
			Message:  "log file directory is not writable: " + filepath.Dir(cfg.LogFile),
			Severity: SeverityWarning,
		})
	}

	return errs
}

// formatField creates a field reference string for validation errors.
func formatField(name string, index int) string {
	return name + "[" + strconv.Itoa(index) + "]"
}

// isCreatable reports whether dir is a writable directory, or does not exist
// yet and its nearest existing ancestor is writable.
func isCreatable(dir string) bool {
	dir = filepath.Clean(dir)
	for {
		info, err := os.Stat(dir)
		if err == nil {
			return info.IsDir() && isDirectoryWritable(dir)
		}
		if !os.IsNotExist(err) {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

// isDirectoryWritable checks if a directory is writable by attempting to create a temp file.
func isDirectoryWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".hoist_write_test")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
