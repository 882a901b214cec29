package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultHistoryPath is used when InitHistoryFile receives an empty path.
const DefaultHistoryPath = ".canvaschat/logs/chat.history"

var (
	historyMu   sync.Mutex
	historyFile *os.File
)

// InitHistoryFile opens the chat transcript file. When continueSession is
// false the file is truncated.
func InitHistoryFile(path string, continueSession bool) error {
	if path == "" {
		path = DefaultHistoryPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	marker := "Started"
	if continueSession {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		marker = "Continued"
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}

	historyMu.Lock()
	defer historyMu.Unlock()
	if historyFile != nil {
		historyFile.Close()
	}
	historyFile = file

	_, err = fmt.Fprintf(file, "=== Canvas Chat Session %s: %s ===\n", marker, time.Now().Format(time.RFC3339))
	return err
}

// LogChatHistory appends one message to the transcript. It is a no-op when
// no history file is open.
func LogChatHistory(role, content string) error {
	historyMu.Lock()
	defer historyMu.Unlock()
	if historyFile == nil {
		return nil
	}
	_, err := fmt.Fprintf(historyFile, "[%s] %s: %s\n", time.Now().Format("15:04:05"), role, content)
	return err
}

func closeHistory() error {
	historyMu.Lock()
	defer historyMu.Unlock()
	if historyFile == nil {
		return nil
	}
	err := historyFile.Close()
	historyFile = nil
	return err
}
