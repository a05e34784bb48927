package main

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type clientConfig struct {
	Server struct {
		URL    string `mapstructure:"url"`
		APIURL string `mapstructure:"api_url"`
	} `mapstructure:"server"`
	Auth struct {
		UserID      string        `mapstructure:"user_id"`
		Token       string        `mapstructure:"token"`
		DevSecret   string        `mapstructure:"dev_secret"`
		DevTokenTTL time.Duration `mapstructure:"dev_token_ttl"`
	} `mapstructure:"auth"`
	Typing struct {
		StopDelay time.Duration `mapstructure:"stop_delay"`
	} `mapstructure:"typing"`
}

var (
	cfgFile string
	cfg     clientConfig
)

// loadConfig reads configs/client.yaml (or --config) and TUTORLINK_* environment overrides.
func loadConfig() {
	viper.SetDefault("server.url", "ws://localhost:8080/ws")
	viper.SetDefault("server.api_url", "http://localhost:8080")
	viper.SetDefault("auth.user_id", "")
	viper.SetDefault("auth.token", "")
	viper.SetDefault("auth.dev_secret", "")
	viper.SetDefault("auth.dev_token_ttl", 15*time.Minute)
	viper.SetDefault("typing.stop_delay", 2*time.Second)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.SetConfigName("client")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("tutorlink")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			log.Fatalf("Error reading config file: %s", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config into struct: %v", err)
	}
}
