// Package logging provides config-driven categorized file-based logging.
// Logs are written to the workspace logs directory with one file per
// category, and only when debug mode is enabled in the server config.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup/initialization
	CategoryServer    Category = "server"    // MCP server loop
	CategoryTools     Category = "tools"     // Tool registration and execution
	CategoryCompiler  Category = "compiler"  // compactc invocation
	CategoryScanner   Category = "scanner"   // Lexical scanning, issue detection
	CategoryGitHub    Category = "github"    // GitHub retrieval and caching
	CategoryRelease   Category = "release"   // Release/version tracking
	CategoryIndex     Category = "index"     // Repository indexing
	CategoryStore     Category = "store"     // SQLite/vector store
	CategoryEmbedding Category = "embedding" // Embedding engine
)

// loggingConfig mirrors the relevant parts of config.LoggingConfig
// to avoid a circular import.
type loggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories"`
	Level      string          `json:"level"`
	JSONFormat bool            `json:"json_format"`
}

// StructuredLogEntry is the JSON form of a log line.
type StructuredLogEntry struct {
	Timestamp int64          `json:"ts"`
	Category  string         `json:"cat"`
	Level     string         `json:"lvl"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	cfg       loggingConfig
	cfgMu     sync.RWMutex
	logLevel  int
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory from an explicit settings
// snapshot. Should be called once at startup.
func Initialize(dir string, debugMode bool, level string, categories map[string]bool) error {
	cfgMu.Lock()
	cfg = loggingConfig{DebugMode: debugMode, Categories: categories, Level: level}
	switch level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	cfgMu.Unlock()

	if !debugMode {
		return nil // Silent no-op in production mode
	}
	if dir == "" {
		return fmt.Errorf("logs directory required in debug mode")
	}
	logsDir = dir
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== compact-mcp logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", level)
	return nil
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()

	if !cfg.DebugMode {
		return false
	}
	if cfg.Categories == nil {
		return true // All enabled by default in debug mode
	}
	enabled, exists := cfg.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix keeps rotation trivial.
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}
	l.logger.Printf("%s", data)
}

func (l *Logger) emit(level int, tag, format string, args ...any) {
	if l.logger == nil || logLevel > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	cfgMu.RLock()
	jsonFormat := cfg.JSONFormat
	cfgMu.RUnlock()
	if jsonFormat {
		l.logJSON(tag, msg)
	} else {
		l.logger.Printf("[%s] %s", tag, msg)
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) { l.emit(LevelDebug, "DEBUG", format, args...) }

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) { l.emit(LevelInfo, "INFO", format, args...) }

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) { l.emit(LevelWarn, "WARN", format, args...) }

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) { l.emit(LevelError, "ERROR", format, args...) }

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience wrappers for the hot categories. These are no-ops when
// the category is disabled.

// Server logs to the server category.
func Server(format string, args ...any) { Get(CategoryServer).Info(format, args...) }

// ServerDebug logs debug to the server category.
func ServerDebug(format string, args ...any) { Get(CategoryServer).Debug(format, args...) }

// Tools logs to the tools category.
func Tools(format string, args ...any) { Get(CategoryTools).Info(format, args...) }

// ToolsDebug logs debug to the tools category.
func ToolsDebug(format string, args ...any) { Get(CategoryTools).Debug(format, args...) }

// Compiler logs to the compiler category.
func Compiler(format string, args ...any) { Get(CategoryCompiler).Info(format, args...) }

// CompilerDebug logs debug to the compiler category.
func CompilerDebug(format string, args ...any) { Get(CategoryCompiler).Debug(format, args...) }

// Scanner logs to the scanner category.
func Scanner(format string, args ...any) { Get(CategoryScanner).Info(format, args...) }

// ScannerDebug logs debug to the scanner category.
func ScannerDebug(format string, args ...any) { Get(CategoryScanner).Debug(format, args...) }

// GitHub logs to the github category.
func GitHub(format string, args ...any) { Get(CategoryGitHub).Info(format, args...) }

// GitHubDebug logs debug to the github category.
func GitHubDebug(format string, args ...any) { Get(CategoryGitHub).Debug(format, args...) }

// Index logs to the index category.
func Index(format string, args ...any) { Get(CategoryIndex).Info(format, args...) }

// IndexDebug logs debug to the index category.
func IndexDebug(format string, args ...any) { Get(CategoryIndex).Debug(format, args...) }

// Store logs to the store category.
func Store(format string, args ...any) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...any) { Get(CategoryStore).Debug(format, args...) }

// Embedding logs to the embedding category.
func Embedding(format string, args ...any) { Get(CategoryEmbedding).Info(format, args...) }

// EmbeddingDebug logs debug to the embedding category.
func EmbeddingDebug(format string, args ...any) { Get(CategoryEmbedding).Debug(format, args...) }

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
