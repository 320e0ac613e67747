package logger

import (
	"time"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

// Log is a single log entry marshaled and written in to the io.Writers of the helper implementing Logger abstraction.
type Log struct {
	ID        any       `json:"_id"        db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Service   string    `json:"service"    db:"service"`
	Level     string    `json:"level"      db:"level"`
	Msg       string    `json:"msg"        db:"msg"`
}

// Logger provides logging methods for debug, info, warning, error and fatal.
// Implementations must never receive passwords or session tokens in msg.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
}
