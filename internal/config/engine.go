package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultDriver    = "sqlite"
	DefaultHost      = "127.0.0.1"
	DefaultPort      = 3306
	DefaultCharset   = "utf8"
	DefaultCollation = "utf8_general_ci"
)

// Options consumed by the engine itself rather than passed to the driver.
const (
	OptionDSN         = "dsn"
	OptionPlaceholder = "placeholder"
	OptionBusyTimeout = "busy_timeout_ms"
	OptionConnTimeout = "connect_timeout"
)

var reservedOptions = map[string]bool{
	OptionDSN:         true,
	OptionPlaceholder: true,
	OptionBusyTimeout: true,
	OptionConnTimeout: true,
}

// EngineConfig holds the driver connection parameters supplied once at
// engine initialization.
type EngineConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
	Charset   string
	Collation string

	// Options are free-form driver parameters appended to the DSN.
	Options map[string]string

	Timeouts *TimeoutConfig
}

// WithDefaults returns a copy of cfg with unset fields filled in.
func (cfg EngineConfig) WithDefaults() EngineConfig {
	if cfg.Driver == "" {
		cfg.Driver = DefaultDriver
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Charset == "" {
		cfg.Charset = DefaultCharset
	}
	if cfg.Collation == "" {
		cfg.Collation = DefaultCollation
	}
	opts := make(map[string]string, len(cfg.Options))
	for k, v := range cfg.Options {
		opts[k] = v
	}
	cfg.Options = opts
	if cfg.Timeouts == nil {
		cfg.Timeouts = LoadTimeouts(NewLoader(MapSettings(opts)))
	}
	return cfg
}

// IsSQLite reports whether the driver is one of the SQLite drivers.
func (cfg EngineConfig) IsSQLite() bool {
	return cfg.Driver == "sqlite" || cfg.Driver == "sqlite3"
}

// Validate checks that the configuration can produce a DSN.
func (cfg EngineConfig) Validate() error {
	var errs []error
	if cfg.Driver == "" {
		errs = append(errs, errors.New("driver is required"))
	}
	if cfg.Options[OptionDSN] != "" {
		return errors.Join(errs...)
	}
	if cfg.Database == "" {
		errs = append(errs, errors.New("database is required"))
	}
	switch {
	case cfg.IsSQLite():
	case cfg.Driver == "mysql":
		if cfg.User == "" {
			errs = append(errs, errors.New("user is required"))
		}
		if cfg.Port < 1 || cfg.Port > 65535 {
			errs = append(errs, fmt.Errorf("invalid port %d", cfg.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("driver %q needs an explicit %q option", cfg.Driver, OptionDSN))
	}
	return errors.Join(errs...)
}

// DSN builds the data source name for the configured driver.
func (cfg EngineConfig) DSN() string {
	if dsn := cfg.Options[OptionDSN]; dsn != "" {
		return dsn
	}
	timeouts := cfg.Timeouts
	if timeouts == nil {
		timeouts = DefaultTimeoutConfig()
	}

	params := url.Values{}
	switch cfg.Driver {
	case "sqlite":
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", timeouts.Busy.Milliseconds()))
		params.Add("_pragma", "journal_mode(WAL)")
		params.Add("_pragma", "foreign_keys(1)")
	case "sqlite3":
		params.Set("_busy_timeout", strconv.FormatInt(timeouts.Busy.Milliseconds(), 10))
		params.Set("_journal_mode", "WAL")
		params.Set("_foreign_keys", "on")
	case "mysql":
		params.Set("charset", cfg.Charset)
		params.Set("collation", cfg.Collation)
		params.Set("timeout", timeouts.Connect.String())
		params.Set("parseTime", "true")
	}
	for k, v := range cfg.Options {
		if !reservedOptions[k] {
			params.Set(k, v)
		}
	}

	query := params.Encode()
	if cfg.IsSQLite() {
		if query == "" {
			return cfg.Database
		}
		return cfg.Database + "?" + query
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, query)
}

// Redacted renders the configuration for logs with credentials masked.
func (cfg EngineConfig) Redacted() string {
	var b strings.Builder
	fmt.Fprintf(&b, "driver=%s database=%s", cfg.Driver, cfg.Database)
	if !cfg.IsSQLite() {
		fmt.Fprintf(&b, " host=%s port=%d user=%s", cfg.Host, cfg.Port, cfg.User)
		if cfg.Password != "" {
			b.WriteString(" password=****")
		}
	}
	keys := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == OptionDSN {
			b.WriteString(" dsn=****")
			continue
		}
		fmt.Fprintf(&b, " %s=%s", k, cfg.Options[k])
	}
	return b.String()
}
