package stdoutwriter

import (
	"encoding/json"

	"github.com/pterm/pterm"

	"github.com/wlo1561411/HappyTime/logger"
)

// Logger writes log entries to the terminal, colored by level.
type Logger struct{}

func (l Logger) Write(p []byte) (n int, err error) {
	var entry logger.Log
	if err := json.Unmarshal(p, &entry); err != nil {
		pterm.Println(string(p))
		return len(p), nil
	}
	pp := printer(entry.Level)
	pp.Println(entry.CreatedAt.Format("15:04:05") + " " + entry.Msg)
	return len(p), nil
}

func printer(level string) pterm.PrefixPrinter {
	switch level {
	case logger.LevelDebug:
		return pterm.Debug
	case logger.LevelWarn:
		return pterm.Warning
	case logger.LevelError:
		return pterm.Error
	case logger.LevelFatal:
		return *pterm.Fatal.WithFatal(false)
	default:
		return pterm.Info
	}
}
