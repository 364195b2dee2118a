package output

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestVerboseOutputOnlyAppearsWhenEnabled(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		expectEmpty bool
	}{
		{"verbose disabled - no output", false, true},
		{"verbose enabled - has output", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			out := New(Config{Verbose: tt.verbose, Writer: &buf, ErrWriter: &buf})

			out.Verbose("moved %s", "a/b")

			if tt.expectEmpty && buf.Len() > 0 {
				t.Errorf("expected no output when verbose disabled, got: %q", buf.String())
			}
			if !tt.expectEmpty && buf.String() != "moved a/b\n" {
				t.Errorf("unexpected verbose output: %q", buf.String())
			}
		})
	}
}

func TestInfoAndErrorWriters(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := New(Config{Writer: &stdout, ErrWriter: &stderr})

	out.Info("planned %d moves", 3)
	out.Error("failed: %s\n", "boom")

	if stdout.String() != "planned 3 moves\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	if stderr.String() != "failed: boom\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestProgressSuppressed(t *testing.T) {
	tests := []struct {
		name    string
		tty     bool
		verbose bool
	}{
		{"not a terminal", false, false},
		{"verbose terminal", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			out := New(Config{IsTTY: tt.tty, Verbose: tt.verbose, Writer: &buf})

			out.StartProgress(10)
			out.UpdateProgress(5, "Moving")
			out.EndProgress()

			if buf.Len() != 0 {
				t.Errorf("expected no progress output, got %q", buf.String())
			}
		})
	}
}

func TestProgressShowsCount(t *testing.T) {
	var buf bytes.Buffer
	out := New(Config{IsTTY: true, Writer: &buf})

	out.StartProgress(10)
	out.UpdateProgress(5, "Moving")

	if !strings.Contains(buf.String(), "5/10") {
		t.Errorf("expected the bar to show 5/10, got %q", buf.String())
	}
	out.EndProgress()
	if out.bar != nil {
		t.Error("expected EndProgress to drop the bar")
	}
}

func TestUpdateWithoutStartIsIgnored(t *testing.T) {
	var buf bytes.Buffer
	out := New(Config{IsTTY: true, Writer: &buf})

	out.UpdateProgress(1, "Moving")
	out.EndProgress()

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestNewWithNilWriters(t *testing.T) {
	out := New(Config{})
	if out.config.Writer != os.Stdout || out.config.ErrWriter != os.Stderr {
		t.Error("expected nil writers to default to stdout and stderr")
	}
}

func TestPrompterConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  yes  \n", true},
		{"n\n", false},
		{"\n", false},
		{"maybe\n", false},
		{"", false},
		{"y", true},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var prompt bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &prompt)

			got, err := p.Confirm("Apply 3 moves?")
			if err != nil {
				t.Fatalf("Confirm failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.HasPrefix(prompt.String(), "Apply 3 moves? [y/N]: ") {
				t.Errorf("unexpected prompt %q", prompt.String())
			}
		})
	}
}

func TestPrompterReadsSuccessiveLines(t *testing.T) {
	p := NewPrompter(strings.NewReader("n\ny\n"), &bytes.Buffer{})

	first, _ := p.Confirm("first?")
	second, _ := p.Confirm("second?")
	if first || !second {
		t.Errorf("got %v, %v; want false, true", first, second)
	}
}

var logLine = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[(INFO|WARN|ERROR)\] .+$`)

func TestLoggerLineFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "hoist.log")
	l, err := OpenLogger(path)
	if err != nil {
		t.Fatalf("OpenLogger failed: %v", err)
	}
	l.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 30, 0, time.Local) }

	l.Info("scan found %d folders", 4)
	l.Warn("a/b: renamed to a_b_1 (name collision)")
	l.Error("move failed\n")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	want := []string{
		"[2024-03-09 14:05:30] [INFO] scan found 4 folders",
		"[2024-03-09 14:05:30] [WARN] a/b: renamed to a_b_1 (name collision)",
		"[2024-03-09 14:05:30] [ERROR] move failed",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLoggerWithoutFileDiscards(t *testing.T) {
	l, err := OpenLogger("")
	if err != nil {
		t.Fatalf("OpenLogger failed: %v", err)
	}
	l.Info("nothing")
	if err := l.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	var nilLogger *Logger
	nilLogger.Warn("also nothing")
}

func TestLoggerLinesAreWellFormed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("every logged message becomes one well-formed line", prop.ForAll(
		func(msgs []string) bool {
			path := filepath.Join(t.TempDir(), "p.log")
			l, err := OpenLogger(path)
			if err != nil {
				return false
			}
			for i, msg := range msgs {
				switch i % 3 {
				case 0:
					l.Info("%s", msg)
				case 1:
					l.Warn("%s", msg)
				default:
					l.Error("%s", msg)
				}
			}
			l.Close()

			data, err := os.ReadFile(path)
			if err != nil {
				return false
			}
			lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
			if len(lines) != len(msgs) {
				return false
			}
			for i, line := range lines {
				if !logLine.MatchString(line) || !strings.HasSuffix(line, "] "+msgs[i]) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(6, gen.Identifier()),
	))

	properties.TestingRun(t)
}
