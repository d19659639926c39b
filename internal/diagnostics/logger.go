package diagnostics

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
)

// Severity is the line-oriented severity the logger writes at.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

func (s Severity) color() string {
	switch s {
	case Warning:
		return "\x1b[33m"
	case Error:
		return "\x1b[31m"
	default:
		return "\x1b[36m"
	}
}

const colorReset = "\x1b[0m"

// Diagnostic is one emitted line.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
}

// Logger is the append-only, shared diagnostic sink. A single Logger instance is passed to the scanner
// and the compiler pass so both phases' diagnostics interleave in the order
// they actually happened.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	color    bool
	verbose  bool
	runID    string
	recorded []Diagnostic
}

// NewLogger creates a Logger writing to w. color is auto-detected from
// whether w is a terminal via go-isatty, mirroring how a CLI gates ANSI
// color on file descriptors rather than unconditionally.
func NewLogger(w io.Writer, verbose bool) *Logger {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Logger{
		out:     w,
		color:   color,
		verbose: verbose,
		runID:   uuid.NewString(),
	}
}

// RunID is the per-invocation correlation id attached implicitly to every
// line this logger writes (useful for matching driver output against an
// external codegen service's own logs).
func (l *Logger) RunID() string { return l.runID }

func (l *Logger) emit(sev Severity, code Code, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recorded = append(l.recorded, Diagnostic{Severity: sev, Code: code, Message: msg})
	if l.color {
		fmt.Fprintf(l.out, "%s[%s][%s] %s%s: %s%s\n", sev.color(), l.runID[:8], sev, colorReset, sev.color(), msg, colorReset)
		return
	}
	fmt.Fprintf(l.out, "[%s][%s] %s: %s\n", l.runID[:8], sev, code, msg)
}

func (l *Logger) Info(format string, args ...any) {
	l.emit(Info, 0, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(code Code, format string, args ...any) {
	l.emit(Warning, code, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(code Code, format string, args ...any) {
	l.emit(Error, code, fmt.Sprintf(format, args...))
}

// VerboseMethod logs a method as compilation begins, only in verbose mode.
func (l *Logger) VerboseMethod(name string) {
	if l.verbose {
		l.Info("compiling %s", name)
	}
}

// GenericCodeSize logs the informational "generic code size" line.
func (l *Logger) GenericCodeSize(label string, bytes uint64) {
	l.emit(Info, GenericCodeSize, fmt.Sprintf("%s: %s of canonical generic code", label, humanize.Bytes(bytes)))
}

// Recorded returns a snapshot of every diagnostic emitted so far, in order.
func (l *Logger) Recorded() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Diagnostic, len(l.recorded))
	copy(out, l.recorded)
	return out
}

// HasFatal reports whether any recorded diagnostic carries a fatal code.
func (l *Logger) HasFatal() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range l.recorded {
		if d.Code.Fatal() {
			return true
		}
	}
	return false
}
