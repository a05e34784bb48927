package logger

import (
	"fmt"
	"log"
	"os"
)

var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger
	DebugLogger *log.Logger
	WarnLogger  *log.Logger
)

func init() {
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	DebugLogger = log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLogger = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
}

func Info(format string, v ...interface{}) {
	InfoLogger.Output(2, fmt.Sprintf(format, v...))
}

func Error(format string, v ...interface{}) {
	ErrorLogger.Output(2, fmt.Sprintf(format, v...))
}

func Debug(format string, v ...interface{}) {
	if debugEnabled() {
		DebugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func Warn(format string, v ...interface{}) {
	WarnLogger.Output(2, fmt.Sprintf(format, v...))
}

func debugEnabled() bool {
	return os.Getenv("ENVIRONMENT") == "development"
}

// Logger scopes the package loggers to a component, e.g. "[gateway] ...".
type Logger struct {
	component string
}

func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) prefix(format string) string {
	return "[" + l.component + "] " + format
}

func (l *Logger) Info(format string, v ...interface{}) {
	InfoLogger.Output(2, fmt.Sprintf(l.prefix(format), v...))
}

func (l *Logger) Warn(format string, v ...interface{}) {
	WarnLogger.Output(2, fmt.Sprintf(l.prefix(format), v...))
}

func (l *Logger) Error(format string, v ...interface{}) {
	ErrorLogger.Output(2, fmt.Sprintf(l.prefix(format), v...))
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if debugEnabled() {
		DebugLogger.Output(2, fmt.Sprintf(l.prefix(format), v...))
	}
}

// Helper for gateway event failures
func LogEventError(component, event, userID string, err error) {
	WarnLogger.Output(2, fmt.Sprintf("[%s] event=%s user=%s error=%v", component, event, userID, err))
}
