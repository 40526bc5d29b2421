package main

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	setDefaults()
}

func setDefaults() {
	viper.SetDefault("server.port", 5719)
	viper.SetDefault("server.strip_www", true)

	viper.SetDefault("proxy.trailing_slash_only", true)
	viper.SetDefault("proxy.trailing_slash_redirection", true)
	viper.SetDefault("proxy.redirect_code", 302)
	viper.SetDefault("proxy.auto_switch_paths", []string{"/"})
	viper.SetDefault("proxy.locale_switch_code", 303)

	viper.SetDefault("redirects.default_status", 302)

	viper.SetDefault("geography.use_country_code_comparison", true)
	viper.SetDefault("geography.include_absolute_closest", true)

	viper.SetDefault("s3.region", "us-east-1")

	viper.SetDefault("log.level", "info")
}

func readConfig(cmd *cobra.Command) {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		slog.Warn("failed to bind flags", "err", err)
	}

	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("FRONTAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			slog.Warn("error reading config file", "err", err)
		}
	}
}
