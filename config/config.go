package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	frontagehttp "github.com/frontage-io/frontage/http"
)

// Config is the root configuration struct for frontage.
type Config struct {
	Server    ServerConfig            `mapstructure:"server"`
	Proxy     ProxyConfig             `mapstructure:"proxy"`
	Redirects RedirectsConfig         `mapstructure:"redirects"`
	Geography GeographyConfig         `mapstructure:"geography"`
	S3        S3Config                `mapstructure:"s3"`
	CORS      frontagehttp.CORSConfig `mapstructure:"cors"`
	Log       LogConfig               `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     int  `mapstructure:"port" validate:"required,min=1,max=65535"`
	StripWWW bool `mapstructure:"strip_www"`
}

// ProxyConfig holds the content resolution settings. An empty bucket is
// allowed here: the layer construction logs a warning and the proxy
// stays inert instead of crashing the process.
type ProxyConfig struct {
	Bucket                   string            `mapstructure:"bucket"`
	Prefix                   string            `mapstructure:"prefix"`
	TrailingSlashOnly        bool              `mapstructure:"trailing_slash_only"`
	TrailingSlashRedirection bool              `mapstructure:"trailing_slash_redirection"`
	RedirectCode             int               `mapstructure:"redirect_code"`
	Routes                   []string          `mapstructure:"routes"`
	Locales                  []string          `mapstructure:"locales"`
	LocalesFile              string            `mapstructure:"locales_file"`
	Subroutes                map[string]string `mapstructure:"subroutes"`
	SubroutesFile            string            `mapstructure:"subroutes_file"`
	AutoSwitchPaths          []string          `mapstructure:"auto_switch_paths"`
	LocaleSwitchCode         int               `mapstructure:"locale_switch_code"`
}

// RedirectsConfig holds the redirect table settings.
type RedirectsConfig struct {
	File          string `mapstructure:"file"`
	DefaultStatus int    `mapstructure:"default_status"`
	TrailingSlash bool   `mapstructure:"trailing_slash"`
}

// GeographyConfig holds the geolocation endpoint settings. An empty
// route disables the endpoints.
type GeographyConfig struct {
	Route                  string `mapstructure:"route"`
	UseCountryCode         bool   `mapstructure:"use_country_code_comparison"`
	IncludeAbsoluteClosest bool   `mapstructure:"include_absolute_closest"`
	BackwardsCompatible    bool   `mapstructure:"backwards_compatible"`
}

// S3Config holds the object store client settings.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region" validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":      "server.port",
	"bucket":    "proxy.bucket",
	"prefix":    "proxy.prefix",
	"s3-region": "s3.region",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5719)
	v.SetDefault("server.strip_www", true)

	// Empty-string defaults register the keys so environment variables
	// bind without a config file.
	v.SetDefault("proxy.bucket", "")
	v.SetDefault("proxy.prefix", "")
	v.SetDefault("proxy.trailing_slash_only", true)
	v.SetDefault("proxy.trailing_slash_redirection", true)
	v.SetDefault("proxy.redirect_code", 302)
	v.SetDefault("proxy.auto_switch_paths", []string{"/"})
	v.SetDefault("proxy.locale_switch_code", 303)

	v.SetDefault("redirects.default_status", 302)
	v.SetDefault("redirects.trailing_slash", false)

	v.SetDefault("geography.use_country_code_comparison", true)
	v.SetDefault("geography.include_absolute_closest", true)
	v.SetDefault("geography.backwards_compatible", false)

	v.SetDefault("s3.region", "us-east-1")

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("FRONTAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
