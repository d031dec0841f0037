package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// SettingsGetter is an interface for retrieving settings from storage
type SettingsGetter interface {
	GetSetting(key string) (string, error)
}

// MapSettings serves settings from an in-memory map, typically the free-form
// driver options of an EngineConfig.
type MapSettings map[string]string

// GetSetting returns the value for key, or "" when absent
func (m MapSettings) GetSetting(key string) (string, error) {
	return m[key], nil
}

// EnvSettings serves settings from environment variables. A key such as
// "log.max_backups" with prefix "DBKIT" is read from DBKIT_LOG_MAX_BACKUPS.
type EnvSettings struct {
	Prefix string
}

// GetSetting returns the environment value for key, or "" when unset
func (e EnvSettings) GetSetting(key string) (string, error) {
	name := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	if e.Prefix != "" {
		name = strings.ToUpper(e.Prefix) + "_" + name
	}
	return os.Getenv(name), nil
}

// Chain consults each getter in order and returns the first non-empty value.
type Chain []SettingsGetter

// GetSetting returns the first non-empty value for key
func (c Chain) GetSetting(key string) (string, error) {
	for _, g := range c {
		if g == nil {
			continue
		}
		val, err := g.GetSetting(key)
		if err != nil {
			return "", err
		}
		if val != "" {
			return val, nil
		}
	}
	return "", nil
}

// Loader provides typed access to settings with default values
type Loader struct {
	src SettingsGetter
}

// NewLoader creates a new settings loader
func NewLoader(src SettingsGetter) *Loader {
	return &Loader{src: src}
}

// Int retrieves an integer setting, returning defaultVal if not found or invalid
func (l *Loader) Int(key string, defaultVal int) int {
	if val, _ := l.src.GetSetting(key); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			return v
		}
	}
	return defaultVal
}

// Bool retrieves a boolean setting, returning defaultVal if not found
// Recognizes "true", "1", "on" and "yes" as true, anything else as false
func (l *Loader) Bool(key string, defaultVal bool) bool {
	if val, _ := l.src.GetSetting(key); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "on", "yes":
			return true
		}
		return false
	}
	return defaultVal
}

// String retrieves a string setting, returning defaultVal if not found or empty
func (l *Loader) String(key, defaultVal string) string {
	if val, _ := l.src.GetSetting(key); val != "" {
		return val
	}
	return defaultVal
}

// Duration retrieves a duration setting, returning defaultVal if not found or invalid
// Expects the value to be in Go duration format (e.g., "1h30m", "5s")
func (l *Loader) Duration(key string, defaultVal time.Duration) time.Duration {
	if val, _ := l.src.GetSetting(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
