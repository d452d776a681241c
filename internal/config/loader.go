package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "LEASEDESK"

// Loader resolves a Config from, in increasing precedence: defaults, the
// config file, LEASEDESK_* environment variables and values passed to Set.
type Loader struct {
	v    *viper.Viper
	file string
}

// NewLoader creates a loader that searches $XDG_CONFIG_HOME/leasedesk,
// ~/.config/leasedesk and the working directory for config.yaml.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile pins the config file. A pinned file that cannot be read is
// an error; a missing file on the search path is not.
func (l *Loader) SetConfigFile(path string) {
	l.file = path
}

// Set overrides one key, e.g. from a command line flag.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// Load reads every source and returns the validated configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	keys := settingKeys(reflect.TypeOf(*cfg), "")

	l.v.SetEnvPrefix(envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	defaults := flatten(reflect.ValueOf(*cfg), "")
	for _, key := range keys {
		l.v.SetDefault(key, defaults[key])
		// Unmarshal only sees env values for keys bound explicitly.
		_ = l.v.BindEnv(key, EnvVar(key))
	}

	if err := l.readFile(); err != nil {
		return nil, err
	}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	for _, p := range []*string{&cfg.Global.DataDir, &cfg.Global.ConfigDir, &cfg.Database.Path, &cfg.Logging.File} {
		*p = expandTilde(*p)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) readFile() error {
	if l.file != "" {
		l.v.SetConfigFile(l.file)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", l.file, err)
		}
		return nil
	}

	l.v.SetConfigName("config")
	l.v.SetConfigType("yaml")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		l.v.AddConfigPath(filepath.Join(xdg, "leasedesk"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "leasedesk"))
	}
	l.v.AddConfigPath(".")

	err := l.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// ConfigFileUsed returns the config file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// AllSettings returns the merged settings as nested maps.
func (l *Loader) AllSettings() map[string]any {
	return l.v.AllSettings()
}

// EnvVar returns the environment variable that overrides a config key.
func EnvVar(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Keys lists every dotted config key, e.g. "workflow.cancel_on_veto".
func Keys() []string {
	return settingKeys(reflect.TypeOf(Config{}), "")
}

// settingKeys walks mapstructure tags down to leaf fields.
func settingKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		key := prefix + name
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() == t.PkgPath() {
			keys = append(keys, settingKeys(f.Type, key+".")...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func flatten(v reflect.Value, prefix string) map[string]any {
	out := make(map[string]any)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		key := prefix + name
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() == t.PkgPath() {
			for k, val := range flatten(v.Field(i), key+".") {
				out[k] = val
			}
			continue
		}
		out[key] = v.Field(i).Interface()
	}
	return out
}

func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
