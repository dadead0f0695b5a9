package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	DefaultRefreshSeconds = 120
	// MinRefreshSeconds is the enforced floor so a mistyped config
	// cannot hammer the usage endpoint.
	MinRefreshSeconds = 10
)

// ProfileConfig is the persisted metadata for one profile. Only
// metadata lives here; tokens stay in the keychain.
type ProfileConfig struct {
	Label  string `json:"label"`
	Source string `json:"source"` // "keychain" or "token"
	Plan   string `json:"plan,omitempty"`
}

type Config struct {
	ActiveProfile  string                   `json:"active_profile"`
	RefreshSeconds int                      `json:"refresh_seconds"`
	WarnThreshold  float64                  `json:"warn_threshold"` // utilization fraction
	CritThreshold  float64                  `json:"crit_threshold"`
	Profiles       map[string]ProfileConfig `json:"profiles"`
}

// AutoProfileID is the built-in profile that follows whatever account
// is currently logged into Claude Code. It always exists.
const AutoProfileID = "auto"

func autoProfile() ProfileConfig {
	return ProfileConfig{Label: "Auto (Keychain)", Source: "keychain"}
}

func DefaultConfig() Config {
	return Config{
		ActiveProfile:  AutoProfileID,
		RefreshSeconds: DefaultRefreshSeconds,
		WarnThreshold:  0.50,
		CritThreshold:  0.80,
		Profiles: map[string]ProfileConfig{
			AutoProfileID: autoProfile(),
		},
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "claudebar")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "claudebar")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.RefreshSeconds <= 0 {
		cfg.RefreshSeconds = DefaultRefreshSeconds
	}
	if cfg.RefreshSeconds < MinRefreshSeconds {
		cfg.RefreshSeconds = MinRefreshSeconds
	}
	if cfg.WarnThreshold <= 0 || cfg.WarnThreshold > 1 {
		cfg.WarnThreshold = 0.50
	}
	if cfg.CritThreshold <= 0 || cfg.CritThreshold > 1 {
		cfg.CritThreshold = 0.80
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]ProfileConfig{}
	}
	// The auto profile cannot be edited away.
	if _, ok := cfg.Profiles[AutoProfileID]; !ok {
		cfg.Profiles[AutoProfileID] = autoProfile()
	}
	if _, ok := cfg.Profiles[cfg.ActiveProfile]; !ok {
		cfg.ActiveProfile = AutoProfileID
	}

	return cfg, nil
}

// saveMu guards read-modify-write cycles on the config file.
var saveMu sync.Mutex

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Update applies fn to the current on-disk config and saves the result
// (read-modify-write under the save mutex).
func Update(fn func(*Config)) error {
	return UpdateAt(ConfigPath(), fn)
}

func UpdateAt(path string, fn func(*Config)) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	cfg, err := LoadFrom(path)
	if err != nil {
		cfg = DefaultConfig()
	}
	fn(&cfg)
	return SaveTo(path, cfg)
}
