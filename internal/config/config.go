// Package config loads t4out.yml.
//
// Every key can be overridden from the environment with the T4OUT_ prefix
// and dots replaced by underscores (T4OUT_CHECKOUT_MODE=force). A .env file
// next to the configuration is loaded first.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "t4out.yml"

// Config is the t4out configuration.
type Config struct {
	Solution         string        `mapstructure:"solution" validate:"required"`
	DefaultExtension string        `mapstructure:"defaultExtension" validate:"required,startswith=."`
	WaitTimeout      time.Duration `mapstructure:"waitTimeout" validate:"gt=0"`
	Concurrency      int           `mapstructure:"concurrency" validate:"min=1,max=64"`
	LogLevel         string        `mapstructure:"logLevel" validate:"oneof=debug info warn error"`

	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Templates TemplatesConfig `mapstructure:"templates"`

	// Dir is the directory relative paths are resolved against.
	Dir string `mapstructure:"-"`
}

type CheckoutConfig struct {
	Mode string `mapstructure:"mode" validate:"oneof=interactive force deny"`
}

type MetadataConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=project badger"`
	Path    string `mapstructure:"path" validate:"required_if=Backend badger"`
}

type CacheConfig struct {
	Projects int `mapstructure:"projects" validate:"min=1"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type TemplatesConfig struct {
	Patterns []string `mapstructure:"patterns" validate:"min=1,dive,required"`
	Ignore   []string `mapstructure:"ignore"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("solution", "solution.yml")
	v.SetDefault("defaultExtension", ".cs")
	v.SetDefault("waitTimeout", "10s")
	v.SetDefault("concurrency", 4)
	v.SetDefault("logLevel", "info")
	v.SetDefault("checkout.mode", "interactive")
	v.SetDefault("metadata.backend", "project")
	v.SetDefault("metadata.path", ".t4out/metadata")
	v.SetDefault("cache.projects", 64)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("templates.patterns", []string{"*.tt", "*.tmpl"})
	v.SetDefault("templates.ignore", []string{})
}

// Load reads the configuration. With an empty path t4out.yml is looked up
// in dir and defaults are used when it does not exist; an explicit path
// must exist.
func Load(path, dir string) (*Config, error) {
	if dir == "" {
		dir = "."
	}
	if path != "" {
		dir = filepath.Dir(path)
	}
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.AddConfigPath(dir)
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("T4OUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s: %w", configName(path), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configName(path), err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	cfg.Dir = abs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s fails %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
}

// Resolve makes path absolute relative to the configuration directory.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir, path)
}

func configName(path string) string {
	if path == "" {
		return FileName
	}
	return path
}
