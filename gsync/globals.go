package internal

import (
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for config lookup paths and the HTTP user agent
	DefaultAppName    = "gacha-sync"
	DefaultAppVersion = "0.3.0"
	DefaultConfigPath = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultUserAgent  = DefaultAppName + " v" + DefaultAppVersion

	// Default Database settings
	DefaultDatabasePath = filepath.Join(DefaultConfigPath, "gacha.db")
	DefaultDatabaseDSN  = "file:" + DefaultDatabasePath

	// Default Kuro record query endpoint, the gacha page itself only carries the parameters
	DefaultKuroRecordEndpoint = "https://gmserver-api.aki-game2.net/gacha/record/query"
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current working directory if home directory is unavailable
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance.
// Unknown levels fall back to info.
func GetLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
