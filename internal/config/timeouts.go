package config

import "time"

// TimeoutConfig holds the driver-level timeouts handed to the engine at
// initialization. The data-access layer itself never times out a call.
type TimeoutConfig struct {
	// Connect bounds establishing a physical connection on network drivers.
	// Default: 10s
	Connect time.Duration

	// Busy is how long SQLite waits on a locked database before failing.
	// Default: 5s
	Busy time.Duration
}

// DefaultTimeoutConfig returns the default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		Connect: 10 * time.Second,
		Busy:    5 * time.Second,
	}
}

// LoadTimeouts reads timeout overrides from the loader, keeping defaults for
// anything unset or invalid.
func LoadTimeouts(loader *Loader) *TimeoutConfig {
	cfg := DefaultTimeoutConfig()
	if loader == nil {
		return cfg
	}
	cfg.Connect = loader.Duration(OptionConnTimeout, cfg.Connect)
	if ms := loader.Int(OptionBusyTimeout, 0); ms > 0 {
		cfg.Busy = time.Duration(ms) * time.Millisecond
	}
	return cfg
}
