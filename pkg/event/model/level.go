package model

import "strings"

type Level string

const (
	DebugLevel   Level = "debug"
	InfoLevel    Level = "info"
	WarningLevel Level = "warning"
	ErrorLevel   Level = "error"
	FatalLevel   Level = "fatal"
	LogLevel     Level = "log"
)

// LevelFromString maps console and logger level names onto event levels. Unknown names map to LogLevel.
func LevelFromString(level string) Level {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarningLevel
	case "error", "assert":
		return ErrorLevel
	case "fatal", "panic", "critical":
		return FatalLevel
	default:
		return LogLevel
	}
}
