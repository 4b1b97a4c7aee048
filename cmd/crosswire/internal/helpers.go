package internal

import (
	"os"
	"path/filepath"

	"github.com/tinyland-inc/crosswire/pkg/config"
)

// Version is overridden at build time via -ldflags.
var Version = "0.3.0"

func GetVersion() string {
	return Version
}

// ConfigPath resolves the config file location: CROSSWIRE_CONFIG when set,
// otherwise ~/.crosswire/config.json.
func ConfigPath() string {
	if path := os.Getenv("CROSSWIRE_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".crosswire", "config.json")
}

func LoadConfig() (*config.Config, error) {
	return config.LoadConfig(ConfigPath())
}
