package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LoggerService handles application logging
type LoggerService struct {
	mu         sync.Mutex
	logDir     string
	logFile    *os.File
	console    io.Writer
	level      zerolog.Level
	logger     zerolog.Logger
	currentDay string
}

// NewLoggerService creates a logger writing to stdout and to a daily file in logDir.
// An empty logDir logs to stdout only.
func NewLoggerService(logDir, level string, pretty bool) *LoggerService {
	var console io.Writer = os.Stdout
	if pretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	service := &LoggerService{
		logDir:  logDir,
		console: console,
		level:   parseLevel(level),
	}
	service.initializeLogger()
	return service
}

// NewConsoleLogger creates a logger that only writes to w
func NewConsoleLogger(w io.Writer) *LoggerService {
	service := &LoggerService{console: w, level: zerolog.DebugLevel}
	service.logger = service.build(w)
	return service
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (s *LoggerService) build(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(s.level).With().Timestamp().Logger()
}

// initializeLogger sets up the logging system
func (s *LoggerService) initializeLogger() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	s.logger = s.build(s.console)

	if s.logDir == "" {
		return
	}

	if err := os.MkdirAll(s.logDir, 0755); err != nil {
		s.logger.Warn().Err(err).Msg("Could not create logs directory, logging to stdout only")
		s.logDir = ""
		return
	}

	if err := s.rotateLogFile(); err != nil {
		s.logger.Warn().Err(err).Msg("Could not create log file, logging to stdout only")
		return
	}

	s.LogInfo("Logger initialized", fmt.Sprintf("Log directory: %s", s.logDir))
}

// rotateLogFile creates a new log file for the current day
func (s *LoggerService) rotateLogFile() error {
	today := time.Now().Format("2006-01-02")

	if s.currentDay == today && s.logFile != nil {
		return nil
	}

	if s.logFile != nil {
		s.logFile.Close()
	}

	logFilePath := filepath.Join(s.logDir, fmt.Sprintf("%s.log", today))
	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	s.logFile = file
	s.currentDay = today
	s.logger = s.build(zerolog.MultiLevelWriter(s.console, file))

	return nil
}

// checkAndRotate checks if we need to rotate to a new day's log file
func (s *LoggerService) checkAndRotate() zerolog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logDir != "" && s.currentDay != time.Now().Format("2006-01-02") {
		if err := s.rotateLogFile(); err != nil {
			s.logger.Warn().Err(err).Msg("Could not rotate log file")
		}
	}
	return s.logger
}

func joinDetails(details []string) string {
	return strings.Join(details, " | ")
}

// Logger returns the underlying zerolog logger for structured fields
func (s *LoggerService) Logger() zerolog.Logger {
	return s.checkAndRotate()
}

// LogDebug logs a debug message
func (s *LoggerService) LogDebug(message string, details ...string) {
	logger := s.checkAndRotate()
	event := logger.Debug()
	if len(details) > 0 {
		event = event.Str("details", joinDetails(details))
	}
	event.Msg(message)
}

// LogInfo logs an informational message
func (s *LoggerService) LogInfo(message string, details ...string) {
	logger := s.checkAndRotate()
	event := logger.Info()
	if len(details) > 0 {
		event = event.Str("details", joinDetails(details))
	}
	event.Msg(message)
}

// LogWarning logs a warning message
func (s *LoggerService) LogWarning(message string, details ...string) {
	logger := s.checkAndRotate()
	event := logger.Warn()
	if len(details) > 0 {
		event = event.Str("details", joinDetails(details))
	}
	event.Msg(message)
}

// LogError logs an error message
func (s *LoggerService) LogError(message string, err error, details ...string) {
	logger := s.checkAndRotate()
	event := logger.Error()
	if err != nil {
		event = event.Err(err)
	}
	if len(details) > 0 {
		event = event.Str("details", joinDetails(details))
	}
	event.Msg(message)
}

// LogPanic logs a panic with stack trace
func (s *LoggerService) LogPanic(recovered interface{}) {
	logger := s.checkAndRotate()
	logger.Error().
		Str("panic", fmt.Sprintf("%v", recovered)).
		Str("stack", string(debug.Stack())).
		Msg("Recovered from panic")
}

// RecoverPanic is a helper to recover from panics in goroutines
func (s *LoggerService) RecoverPanic() {
	if r := recover(); r != nil {
		s.LogPanic(r)
	}
}

// GetLogDirectory returns the directory where logs are stored
func (s *LoggerService) GetLogDirectory() string {
	return s.logDir
}

// CleanOldLogs removes log files older than specified days
func (s *LoggerService) CleanOldLogs(daysToKeep int) error {
	if s.logDir == "" {
		return nil
	}
	files, err := os.ReadDir(s.logDir)
	if err != nil {
		return err
	}

	cutoffDate := time.Now().AddDate(0, 0, -daysToKeep)

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".log" {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffDate) {
			filePath := filepath.Join(s.logDir, file.Name())
			s.LogInfo("Deleting old log file", filePath)
			os.Remove(filePath)
		}
	}

	return nil
}

// Close closes the log file
func (s *LoggerService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
}
