// Package config manages the TOML config file in the XDG config
// directory plus the environment overrides shared by the CLI, the bot
// and the tool server.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

const appDirName = "kharkiv-metro"

const defaultConfig = `[database]
auto = true
# path = "~/.local/share/kharkiv-metro/metro.db"  # used if auto = false

[preferences]
language = "ua"
output_format = "table"

[preferences.route]
format = "full"  # "full" (table), "simple" (inline), or "json"
compact = false  # true = show only key stations (start, transfers, end)

[scraper]
timeout = 30
user_agent = "kharkiv-metro/1.0"

[user_data]
enabled = false

[analytics]
enabled = false
salt = "default-salt-change-me"
`

// Config is the merged view of the config file with dotted-key access.
type Config struct {
	configDir  string
	dataDir    string
	configFile string
	values     map[string]interface{}
}

// Load reads the config file, falling back to built-in defaults when it
// does not exist. An explicit path overrides the XDG location.
func Load(path string) (*Config, error) {
	c := &Config{
		configDir: configDir(),
		dataDir:   dataDir(),
	}
	c.configFile = filepath.Join(c.configDir, "config.toml")
	if path != "" {
		c.configFile = path
	}

	raw := []byte(defaultConfig)
	if data, err := os.ReadFile(c.configFile); err == nil {
		raw = data
	}

	c.values = map[string]interface{}{}
	if err := toml.Unmarshal(raw, &c.values); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	return c, nil
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		if base := os.Getenv("APPDATA"); base != "" {
			return filepath.Join(base, appDirName)
		}
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", appDirName)
	default:
		if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
			return filepath.Join(base, appDirName)
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appDirName)
}

func dataDir() string {
	switch runtime.GOOS {
	case "windows":
		if base := os.Getenv("LOCALAPPDATA"); base != "" {
			return filepath.Join(base, appDirName)
		}
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", appDirName)
	default:
		if base := os.Getenv("XDG_DATA_HOME"); base != "" {
			return filepath.Join(base, appDirName)
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appDirName)
}

// ConfigPath returns the path of the config file in use.
func (c *Config) ConfigPath() string { return c.configFile }

// DataDir returns the XDG data directory for the application.
func (c *Config) DataDir() string { return c.dataDir }

// Get resolves a dotted key like "preferences.route.format".
func (c *Config) Get(key string) (interface{}, bool) {
	cur := interface{}(c.values)
	for _, part := range strings.Split(key, ".") {
		table, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = table[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString returns a string value or the fallback.
func (c *Config) GetString(key, fallback string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// GetBool returns a boolean value or the fallback.
func (c *Config) GetBool(key string, fallback bool) bool {
	if v, ok := c.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

// GetInt returns an integer value or the fallback.
func (c *Config) GetInt(key string, fallback int) int {
	if v, ok := c.Get(key); ok {
		switch n := v.(type) {
		case int64:
			return int(n)
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return fallback
}

// Set writes a dotted key, creating intermediate tables, and saves.
func (c *Config) Set(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	table := c.values
	for _, part := range parts[:len(parts)-1] {
		next, ok := table[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			table[part] = next
		}
		table = next
	}
	table[parts[len(parts)-1]] = value
	return c.Save()
}

// Reset restores the built-in defaults and saves.
func (c *Config) Reset() error {
	c.values = map[string]interface{}{}
	if err := toml.Unmarshal([]byte(defaultConfig), &c.values); err != nil {
		return errors.Wrap(err, "parsing default config")
	}
	return c.Save()
}

// Save writes the config file, creating the directory if needed.
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.configFile), 0o755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	data, err := toml.Marshal(c.values)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrap(os.WriteFile(c.configFile, data, 0o644), "writing config")
}

// EnsureDefault writes the default config file if none exists yet.
func (c *Config) EnsureDefault() error {
	if _, err := os.Stat(c.configFile); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.configFile), 0o755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	return errors.Wrap(os.WriteFile(c.configFile, []byte(defaultConfig), 0o644), "writing default config")
}

// Values returns the underlying config tree for display.
func (c *Config) Values() map[string]interface{} { return c.values }

// DBPath resolves the store location: CLI override, then METRO_DB_PATH,
// then the config file, then the XDG data directory.
func (c *Config) DBPath(cliOverride string) string {
	if cliOverride != "" {
		return cliOverride
	}
	if env := os.Getenv("METRO_DB_PATH"); env != "" {
		return env
	}
	if !c.GetBool("database.auto", true) {
		if path := c.GetString("database.path", ""); path != "" {
			return expandHome(path)
		}
	}
	return filepath.Join(c.dataDir, "metro.db")
}

// UserDataDBPath resolves the bot's user-data store. It defaults to the
// same file as the timetable store.
func (c *Config) UserDataDBPath() string {
	if env := os.Getenv("USER_DATA_DB_PATH"); env != "" {
		return env
	}
	return c.DBPath("")
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Timezone returns the wall-clock timezone used everywhere: TZ env var,
// defaulting to Europe/Kyiv.
func Timezone() *time.Location {
	name := os.Getenv("TZ")
	if name == "" {
		name = "Europe/Kyiv"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BotToken returns the required bot token.
func BotToken() (string, error) {
	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		return "", errors.New("BOT_TOKEN not set")
	}
	return token, nil
}

// AdminUserID returns the configured admin user, or 0.
func AdminUserID() int64 {
	raw := os.Getenv("ADMIN_USER_ID")
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// UserDataEnabled reports whether per-user data storage is on. The env
// var overrides the config file.
func (c *Config) UserDataEnabled() bool {
	if env := os.Getenv("ENABLE_USER_DATA"); env != "" {
		return strings.EqualFold(env, "true")
	}
	return c.GetBool("user_data.enabled", false)
}

// AnalyticsEnabled reports whether anonymized usage counting is on.
func (c *Config) AnalyticsEnabled() bool {
	if env := os.Getenv("ENABLE_ANALYTICS"); env != "" {
		return strings.EqualFold(env, "true")
	}
	return c.GetBool("analytics.enabled", false)
}

// AnalyticsSalt returns the salt used to anonymize user ids.
func (c *Config) AnalyticsSalt() string {
	if env := os.Getenv("ANALYTICS_SALT"); env != "" {
		return env
	}
	return c.GetString("analytics.salt", "default-salt-change-me")
}
