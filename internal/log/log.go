// Package log provides terminal output for the sigma CLI and the structured
// logger used by the engine and orchestrator.
//
// Terminal helpers (Info, Success, Warning, Error, Fatal, Section) print
// human-facing lines styled with lipgloss. NewLogger builds the zap logger
// that records machine-readable engine activity on stderr.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	infoStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

const sectionWidth = 46

var (
	mu  sync.Mutex
	out io.Writer = os.Stdout
)

// OsExit is the function called by Fatal to terminate the process.
// It is a package-level variable so tests can replace it without subprocess overhead.
var OsExit = os.Exit

// SetOutput redirects terminal output and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

func printf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, format, args...)
}

// Info prints an [INFO] message.
func Info(msg string) {
	printf("%s %s\n", infoStyle.Render("[INFO]"), msg)
}

// Success prints a green [SUCCESS] message.
func Success(msg string) {
	printf("%s %s\n", successStyle.Render("[SUCCESS]"), msg)
}

// Warning prints a yellow [WARNING] message.
func Warning(msg string) {
	printf("%s %s\n", warningStyle.Render("[WARNING]"), msg)
}

// Error prints a red [ERROR] message.
func Error(msg string) {
	printf("%s %s\n", errorStyle.Render("[ERROR]"), msg)
}

// Fatal prints a red [ERROR] message then exits with status 1.
func Fatal(msg string) {
	Error(msg)
	OsExit(1)
}

// Section prints a box-draw separator with a title.
func Section(title string) {
	line := sectionStyle.Render(strings.Repeat("━", sectionWidth))
	printf("\n%s\n%s\n%s\n\n", line, sectionStyle.Render(title), line)
}

// NewLogger builds a zap logger writing to stderr. level is any zap level
// name ("debug", "info", "warn", "error"); format is "console" or "json".
func NewLogger(level, format string) (*zap.Logger, error) {
	return newLogger(level, format, zapcore.Lock(os.Stderr))
}

// NewLoggerTo is NewLogger with an explicit sink.
func NewLoggerTo(w io.Writer, level, format string) (*zap.Logger, error) {
	return newLogger(level, format, zapcore.AddSync(w))
}

func newLogger(level, format string, sink zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch format {
	case "", "console":
		enc = zapcore.NewConsoleEncoder(encoderCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q: want console or json", format)
	}

	return zap.New(zapcore.NewCore(enc, sink, lvl)), nil
}
