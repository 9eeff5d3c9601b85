// Package console is the terminal backend of the logger facade.
package console

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// ConsoleLogger writes leveled, timestamped lines with charmbracelet/log.
type ConsoleLogger struct {
	logger *log.Logger
}

// ConsoleLoggerParams configures a ConsoleLogger. Prefix names the binary
// (for example "worker") and is empty for the CLI. Output defaults to stderr
// so graph output written to stdout stays clean. Debug also reports the
// calling file and line.
type ConsoleLoggerParams struct {
	Debug  bool
	Prefix string
	Output io.Writer
}

func NewConsoleLogger(params ConsoleLoggerParams) *ConsoleLogger {
	out := params.Output
	if out == nil {
		out = os.Stderr
	}
	opts := log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           log.InfoLevel,
		Prefix:          params.Prefix,
	}
	if params.Debug {
		opts.Level = log.DebugLevel
		opts.ReportCaller = true
		// Skip the facade and this adapter to report the real caller.
		opts.CallerOffset = 2
	}
	return &ConsoleLogger{logger: log.NewWithOptions(out, opts)}
}

func (c *ConsoleLogger) Log(message string, keyvals ...any)   { c.logger.Print(message, keyvals...) }
func (c *ConsoleLogger) Debug(message string, keyvals ...any) { c.logger.Debug(message, keyvals...) }
func (c *ConsoleLogger) Info(message string, keyvals ...any)  { c.logger.Info(message, keyvals...) }
func (c *ConsoleLogger) Warn(message string, keyvals ...any)  { c.logger.Warn(message, keyvals...) }
func (c *ConsoleLogger) Error(message string, keyvals ...any) { c.logger.Error(message, keyvals...) }

// Fatal logs and exits with status 1.
func (c *ConsoleLogger) Fatal(message string, keyvals ...any) { c.logger.Fatal(message, keyvals...) }
