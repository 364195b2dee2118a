// Package output handles CLI output formatting including verbose mode and progress indicators.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Config holds output configuration.
type Config struct {
	Verbose   bool      // Enable verbose output
	Writer    io.Writer // Output destination (default: os.Stdout)
	ErrWriter io.Writer // Error output destination (default: os.Stderr)
	IsTTY     bool      // Whether output is a terminal
}

// Output handles formatted output with verbose and progress support. It
// implements the executor's Progress interface.
type Output struct {
	config     Config
	bar        *progressbar.ProgressBar
	progressMu sync.Mutex
}

// New creates a new Output instance with the given configuration.
func New(config Config) *Output {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.ErrWriter == nil {
		config.ErrWriter = os.Stderr
	}
	return &Output{
		config: config,
	}
}

// DefaultConfig returns a Config with sensible defaults and TTY detection.
func DefaultConfig() Config {
	return Config{
		Verbose:   false,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		IsTTY:     term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Verbose prints a message only when verbose mode is enabled.
func (o *Output) Verbose(format string, args ...interface{}) {
	if !o.config.Verbose {
		return
	}
	o.print(o.config.Writer, format, args...)
}

// Info prints an informational message (always shown).
func (o *Output) Info(format string, args ...interface{}) {
	o.print(o.config.Writer, format, args...)
}

// Error prints an error message to stderr.
func (o *Output) Error(format string, args ...interface{}) {
	o.print(o.config.ErrWriter, format, args...)
}

func (o *Output) print(w io.Writer, format string, args ...interface{}) {
	o.clearProgressLine()
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, msg)
}

// clearProgressLine clears the bar so a message can be printed on its own
// line. The bar redraws itself on the next update.
func (o *Output) clearProgressLine() {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if o.bar != nil {
		o.bar.Clear()
	}
}

// progressEnabled reports whether a bar is drawn. Progress is suppressed off
// a terminal and in verbose mode, where every item is printed instead.
func (o *Output) progressEnabled() bool {
	return o.config.IsTTY && !o.config.Verbose
}

// StartProgress begins a progress bar over total items.
func (o *Output) StartProgress(total int) {
	if !o.progressEnabled() {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(o.config.Writer),
		progressbar.OptionSetDescription("Applying"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

// UpdateProgress moves the bar to current and shows message as its description.
func (o *Output) UpdateProgress(current int, message string) {
	if !o.progressEnabled() {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if o.bar == nil {
		return
	}
	if message != "" {
		o.bar.Describe(message)
	}
	o.bar.Set(current)
}

// EndProgress finishes and clears the bar.
func (o *Output) EndProgress() {
	if !o.progressEnabled() {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if o.bar == nil {
		return
	}
	o.bar.Finish()
	o.bar = nil
}

// IsVerbose returns whether verbose mode is enabled.
func (o *Output) IsVerbose() bool {
	return o.config.Verbose
}

// IsTTY returns whether the output is a terminal.
func (o *Output) IsTTY() bool {
	return o.config.IsTTY
}
