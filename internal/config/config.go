// Package config loads planboard.yaml with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"planboard/internal/planning"
	"planboard/internal/timeline"
)

const (
	FileName  = "planboard.yaml"
	envPrefix = "PLANBOARD"

	// EnvConfigDir names a directory searched for planboard.yaml after the store dir.
	EnvConfigDir = "PLANBOARD_CONFIG_DIR"
)

type Config struct {
	VaultID  string          `mapstructure:"vaultId" yaml:"vaultId" json:"vaultId" validate:"required"`
	Timeline timeline.Config `mapstructure:"timeline" yaml:"timeline" json:"timeline"`
	Store    StoreConfig     `mapstructure:"store" yaml:"store" json:"store"`

	// Path is the file the config was read from, empty when only defaults and env apply.
	Path string `mapstructure:"-" yaml:"-" json:"path,omitempty"`
}

type StoreConfig struct {
	ReloadDelay        time.Duration `mapstructure:"reloadDelay" yaml:"reloadDelay" json:"reloadDelay" validate:"min=0"`
	UIStateDebounce    time.Duration `mapstructure:"uiStateDebounce" yaml:"uiStateDebounce" json:"uiStateDebounce" validate:"min=0"`
	ConflictRetryDelay time.Duration `mapstructure:"conflictRetryDelay" yaml:"conflictRetryDelay" json:"conflictRetryDelay" validate:"min=0"`
}

var validate = validator.New()

func Default() Config {
	return Config{
		VaultID:  planning.DefaultVaultID,
		Timeline: timeline.DefaultConfig(),
		Store: StoreConfig{
			ReloadDelay:        planning.DefaultReloadDelay,
			UIStateDebounce:    planning.DefaultUIStateDebounce,
			ConflictRetryDelay: planning.DefaultConflictRetryDelay,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("vaultId", d.VaultID)
	v.SetDefault("timeline.dayStart", d.Timeline.DayStart)
	v.SetDefault("timeline.dayEnd", d.Timeline.DayEnd)
	v.SetDefault("timeline.minSlotMinutes", d.Timeline.MinSlotMinutes)
	v.SetDefault("timeline.snapMinutes", d.Timeline.SnapMinutes)
	v.SetDefault("store.reloadDelay", d.Store.ReloadDelay)
	v.SetDefault("store.uiStateDebounce", d.Store.UIStateDebounce)
	v.SetDefault("store.conflictRetryDelay", d.Store.ConflictRetryDelay)
}

// Load reads the config. An explicit path must exist; otherwise planboard.yaml is looked up in
// storeDir and then $PLANBOARD_CONFIG_DIR, and a missing file means defaults.
// PLANBOARD_* variables (PLANBOARD_TIMELINE_DAYSTART, PLANBOARD_VAULTID, ...) override the file.
func Load(path, storeDir string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	file := strings.TrimSpace(path)
	if file == "" {
		file = findFile(storeDir, os.Getenv(EnvConfigDir))
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config file not found: %s", file)
			}
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func findFile(dirs ...string) string {
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		candidate := filepath.Join(dir, FileName)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate
		}
	}
	return ""
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, _, err := c.Timeline.Validate(); err != nil {
		return fmt.Errorf("invalid config: timeline: %w", err)
	}
	return nil
}

// StoreOptions turns the config into planning store options.
func (c Config) StoreOptions() []planning.Option {
	return []planning.Option{
		planning.WithVaultID(c.VaultID),
		planning.WithTimelineConfig(c.Timeline),
		planning.WithReloadDelay(c.Store.ReloadDelay),
		planning.WithUIStateDebounce(c.Store.UIStateDebounce),
		planning.WithConflictRetryDelay(c.Store.ConflictRetryDelay),
	}
}
