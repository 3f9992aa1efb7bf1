package paths

import (
	"os"
	"path/filepath"
)

const appDirName = "champion-bot"

// GetDataDir returns the directory holding the database and runtime files.
// CHAMPION_BOT_DATA_DIR overrides the default under the user config dir.
func GetDataDir() string {
	if dir := os.Getenv("CHAMPION_BOT_DATA_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return filepath.Join(".", "data")
	}
	return filepath.Join(base, appDirName)
}

// GetDBPath returns the SQLite database path.
func GetDBPath() string {
	return filepath.Join(GetDataDir(), "local.db")
}

// GetDefaultQuestionsDir is where static question banks live unless QUESTIONS_DIR is set.
func GetDefaultQuestionsDir() string {
	return filepath.Join(GetDataDir(), "questions")
}

// EnsureDataDirs creates the data directories.
func EnsureDataDirs() error {
	for _, dir := range []string{GetDataDir(), GetDefaultQuestionsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
