package config

import (
	_ "embed"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/logging"
	"github.com/neelabalan/dotsync/pkg/profile"
	"github.com/neelabalan/dotsync/pkg/types"
)

// EnvPrefix is the prefix of environment variables that override config keys
const EnvPrefix = "DOTSYNC_"

// keyDelim separates nested koanf keys. Profile names are map keys and may
// contain ".", so the delimiter is a byte no config key can hold.
const keyDelim = "\x00"

//go:embed embedded/defaults.toml
var defaultConfig []byte

// envKeys are the config keys that may be set from the environment.
var envKeys = map[string]struct{}{
	"url":         {},
	"branch":      {},
	"path":        {},
	"backup_path": {},
}

// rawBytesProvider implements koanf provider for raw bytes
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, stderrors.New("not implemented")
}

// LoadOptions tunes Load.
type LoadOptions struct {
	// Overrides take precedence over every other source, keyed by config key.
	Overrides map[string]interface{}
}

// Load reads, merges and validates the configuration file at path.
func Load(path string) (*types.Config, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions is Load with caller supplied overrides.
func LoadWithOptions(path string, opts LoadOptions) (*types.Config, error) {
	logger := logging.GetLogger("config")

	k := koanf.New(keyDelim)

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to load default config")
	}

	// 2. User config file
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to read config file %s", path).
			WithDetail("path", path)
	}
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse config file %s", path).
			WithDetail("path", path)
	}

	// 3. Environment
	err = k.Load(env.Provider(EnvPrefix, keyDelim, func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if _, ok := envKeys[key]; !ok {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment overrides")
	}

	// 4. Explicit overrides
	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, keyDelim), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to apply overrides")
		}
	}

	var cfg types.Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			ErrorUnused:      false,
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to decode config file %s", path).
			WithDetail("path", path)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	logger.Debug().
		Str("path", path).
		Str("url", cfg.URL).
		Int("profiles", len(cfg.Profiles)).
		Msg("Configuration loaded")

	return &cfg, nil
}

// parserFor picks the koanf parser for a config file by extension.
func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", "":
		return json.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, errors.Newf(errors.ErrConfigLoad, "unsupported config format %q", filepath.Ext(path)).
			WithDetail("path", path)
	}
}

// Validate checks a config for the fields setup relies on.
func Validate(cfg *types.Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfigValid, "config is empty")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return errors.New(errors.ErrConfigValid, "url is required")
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return errors.New(errors.ErrConfigValid, "path is required")
	}
	if strings.TrimSpace(cfg.BackupPath) == "" {
		return errors.New(errors.ErrConfigValid, "backup_path is required")
	}
	if err := profile.Validate(cfg.Profiles); err != nil {
		return errors.Wrap(err, errors.ErrConfigValid, "invalid profiles")
	}
	return nil
}
