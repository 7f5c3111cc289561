package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/go-go-golems/loom/pkg/canvas"
)

// Settings is everything the CLI and server read from config: where the
// gateway lives, who we act as, and how we log. Values come from a yaml
// config file overridden by LOOM_* environment variables.
type Settings struct {
	Gateway  GatewaySettings `yaml:"gateway" mapstructure:"gateway"`
	Identity canvas.Identity `yaml:"identity" mapstructure:"identity"`
	Log      LogSettings     `yaml:"log" mapstructure:"log"`
	Server   ServerSettings  `yaml:"server" mapstructure:"server"`
}

type GatewaySettings struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type LogSettings struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type ServerSettings struct {
	ListenAddr   string `yaml:"listen_addr" mapstructure:"listen_addr"`
	OpenAIAPIKey string `yaml:"openai_api_key" mapstructure:"openai_api_key"`
	OpenAIModel  string `yaml:"openai_model" mapstructure:"openai_model"`
}

// Load reads settings from the given config file (or the default search
// paths when empty), then applies LOOM_* environment overrides.
func Load(configFile string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("gateway.base_url", "http://localhost:8711")
	v.SetDefault("gateway.timeout", 60*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.listen_addr", ":8711")
	v.SetDefault("server.openai_model", "gpt-4o-mini")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("loom")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.loom")
	}

	v.SetEnvPrefix("LOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config")
		}
		// no config file is fine, defaults and env still apply
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return settings, nil
}
