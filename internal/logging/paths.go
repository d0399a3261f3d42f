package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.localsearch/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".localsearch", "logs")
	}
	return filepath.Join(home, ".localsearch", "logs")
}

// DefaultLogPath returns the default build log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "build.log")
}

// FindLogFile returns explicit if it exists, otherwise the default build log.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("no log file found. Run a build with --debug first.\nExpected at: %s", path)
}
