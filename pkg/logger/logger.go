// Package logger is the process-wide log facade. The CLI, the HTTP server and
// the queue worker install their backends once at startup. Library packages
// log through the package functions and tag messages with the stage they come
// from, e.g. "[Crawl]", "[Resolve]" or "[Oracle]".
package logger

// LoggerInstance is a log backend. keyvals alternate between keys and values.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

type level int

const (
	levelPlain level = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelFatal
)

var backends []LoggerInstance

// Init replaces the installed backends. Until it is called every message is
// discarded, which keeps package tests quiet.
func Init(instances ...LoggerInstance) {
	backends = instances
}

func emit(l level, message string, keyvals []any) {
	for _, b := range backends {
		switch l {
		case levelDebug:
			b.Debug(message, keyvals...)
		case levelInfo:
			b.Info(message, keyvals...)
		case levelWarn:
			b.Warn(message, keyvals...)
		case levelError:
			b.Error(message, keyvals...)
		case levelFatal:
			b.Fatal(message, keyvals...)
		default:
			b.Log(message, keyvals...)
		}
	}
}

// Log writes a message without a level.
func Log(message string, keyvals ...any) { emit(levelPlain, message, keyvals) }

// Debug is for per-page and per-candidate detail.
func Debug(message string, keyvals ...any) { emit(levelDebug, message, keyvals) }

// Info is for crawl phases and job progress.
func Info(message string, keyvals ...any) { emit(levelInfo, message, keyvals) }

// Warn is for recoverable trouble such as a failed page or an oracle fallback.
func Warn(message string, keyvals ...any) { emit(levelWarn, message, keyvals) }

func Error(message string, keyvals ...any) { emit(levelError, message, keyvals) }

// Fatal logs and exits through the backend. Only the binaries under cmd/ call
// it; packages return errors instead.
func Fatal(message string, keyvals ...any) { emit(levelFatal, message, keyvals) }
