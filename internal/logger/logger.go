package logger

import (
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

const logFlags = log.Ldate | log.Ltime | log.Lshortfile

var (
	InfoLogger  = log.New(os.Stderr, "INFO: ", logFlags)
	WarnLogger  = log.New(os.Stderr, "WARN: ", logFlags)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", logFlags)
	DebugLogger = log.New(io.Discard, "DEBUG: ", logFlags)

	logFile *lumberjack.Logger
)

// Options controls where the log file lives and how it is rotated.
type Options struct {
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
	Debug      bool
}

// Init points every logger at a rotating log file.
func Init(opts Options) error {
	if opts.Path == "" {
		return fmt.Errorf("log file path is required")
	}
	Cleanup()

	logFile = &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxAge:     opts.MaxAgeDays,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
	}
	SetOutput(logFile, opts.Debug)
	return nil
}

// SetOutput redirects all loggers to w. Debug output is dropped unless debug is set.
func SetOutput(w io.Writer, debug bool) {
	InfoLogger.SetOutput(w)
	WarnLogger.SetOutput(w)
	ErrorLogger.SetOutput(w)
	if debug {
		DebugLogger.SetOutput(w)
	} else {
		DebugLogger.SetOutput(io.Discard)
	}
}

// RotateLog starts a fresh log file, keeping the previous one as a backup.
func RotateLog() error {
	if logFile == nil {
		return fmt.Errorf("logger not initialized")
	}
	return logFile.Rotate()
}

// Cleanup closes the log file when the application is done using it
func Cleanup() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Info logs an informational message to the log file
func Info(v ...interface{}) {
	InfoLogger.Output(2, fmt.Sprintln(v...))
}

func Warn(v ...interface{}) {
	WarnLogger.Output(2, fmt.Sprintln(v...))
}

// Error logs an error message to the log file
func Error(v ...interface{}) {
	ErrorLogger.Output(2, fmt.Sprintln(v...))
}

func Debug(v ...interface{}) {
	DebugLogger.Output(2, fmt.Sprintln(v...))
}

// Category prefixes every message with a bracketed tag such as [api].
type Category string

const (
	CategoryAPI      Category = "api"
	CategoryStore    Category = "store"
	CategoryMultisig Category = "multisig"
	CategoryBundler  Category = "bundler"
)

func (c Category) tag(v []interface{}) []interface{} {
	return append([]interface{}{"[" + string(c) + "]"}, v...)
}

func (c Category) Info(v ...interface{}) {
	InfoLogger.Output(2, fmt.Sprintln(c.tag(v)...))
}

func (c Category) Warn(v ...interface{}) {
	WarnLogger.Output(2, fmt.Sprintln(c.tag(v)...))
}

func (c Category) Error(v ...interface{}) {
	ErrorLogger.Output(2, fmt.Sprintln(c.tag(v)...))
}

func (c Category) Debug(v ...interface{}) {
	DebugLogger.Output(2, fmt.Sprintln(c.tag(v)...))
}
