// Package settings loads waypoint's configuration from flags, environment,
// config files and defaults through viper.
package settings

import (
	"os"
	"strings"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type LLMSettings struct {
	BaseURL     string        `mapstructure:"base-url" yaml:"base-url"`
	APIKey      string        `mapstructure:"api-key" yaml:"api-key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature *float64      `mapstructure:"temperature" yaml:"temperature,omitempty"`
}

type MapsSettings struct {
	APIKey  string        `mapstructure:"api-key" yaml:"api-key"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type DispatchSettings struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PlaceLimit int           `mapstructure:"place-limit" yaml:"place-limit"`
}

type ServerSettings struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	Debug       bool     `mapstructure:"debug" yaml:"debug"`
	StaticDir   string   `mapstructure:"static-dir" yaml:"static-dir"`
	CORSOrigins []string `mapstructure:"cors-origins" yaml:"cors-origins"`
	SearchLimit int      `mapstructure:"search-limit" yaml:"search-limit"`
}

type CacheSettings struct {
	RedisAddr     string        `mapstructure:"redis-addr" yaml:"redis-addr"`
	RedisPassword string        `mapstructure:"redis-password" yaml:"redis-password"`
	RedisDB       int           `mapstructure:"redis-db" yaml:"redis-db"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type PromptSettings struct {
	Template string `mapstructure:"template" yaml:"template,omitempty"`
}

type Settings struct {
	LLM      LLMSettings      `mapstructure:"llm" yaml:"llm"`
	Maps     MapsSettings     `mapstructure:"maps" yaml:"maps"`
	Dispatch DispatchSettings `mapstructure:"dispatch" yaml:"dispatch"`
	Server   ServerSettings   `mapstructure:"server" yaml:"server"`
	Cache    CacheSettings    `mapstructure:"cache" yaml:"cache"`
	Prompt   PromptSettings   `mapstructure:"prompt" yaml:"prompt"`
}

// EnvPrefix prefixes every key in the environment, e.g. WAYPOINT_LLM_MODEL.
const EnvPrefix = "WAYPOINT"

// legacyEnv maps keys to the environment names the service has always
// honored.
var legacyEnv = map[string]string{
	"llm.base-url": "LLM_BASE_URL",
	"llm.api-key":  "LLM_API_KEY",
	"llm.model":    "LLM_MODEL",
	"maps.api-key": "GOOGLE_MAPS_API_KEY",
	"server.host":  "APP_HOST",
	"server.port":  "APP_PORT",
	"server.debug": "DEBUG",
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.base-url", "http://localhost:11434/v1")
	v.SetDefault("llm.api-key", "")
	v.SetDefault("llm.model", "llama3")
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("maps.api-key", "")
	v.SetDefault("maps.timeout", 10*time.Second)

	v.SetDefault("dispatch.timeout", 15*time.Second)
	v.SetDefault("dispatch.place-limit", 5)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debug", true)
	v.SetDefault("server.static-dir", "static")
	v.SetDefault("server.cors-origins", []string{"*"})
	v.SetDefault("server.search-limit", 10)

	v.SetDefault("cache.redis-addr", "")
	v.SetDefault("cache.redis-password", "")
	v.SetDefault("cache.redis-db", 0)
	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("prompt.template", "")
}

// BindEnv wires WAYPOINT_* names for every key and the legacy names on top.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.NewReplacer("-", "_", ".", "_").Replace(strings.ToUpper(key))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return errors.Wrapf(err, "could not bind %s", key)
		}
	}
	return nil
}

// New returns a viper instance with defaults and environment bindings.
func New() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return nil, err
	}
	return v, nil
}

// ReadConfigFile reads path, or searches the usual places when path is
// empty. A missing config file is not an error.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("waypoint")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.waypoint")
		if xdg, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(xdg + "/waypoint")
		}
	}
	err := v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}
	return errors.Wrap(err, "could not read config file")
}

// LoadDotEnv exports the variables of a dotenv file that are not already
// set in the environment. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "could not stat %s", path)
	}
	d := viper.New()
	d.SetConfigFile(path)
	d.SetConfigType("env")
	if err := d.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "could not read %s", path)
	}
	for _, k := range d.AllKeys() {
		name := strings.ToUpper(k)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, d.GetString(k)); err != nil {
			return errors.Wrapf(err, "could not export %s", name)
		}
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	var problems []string
	if strings.TrimSpace(s.LLM.Model) == "" {
		problems = append(problems, "llm.model must be set")
	}
	if s.LLM.Timeout <= 0 {
		problems = append(problems, "llm.timeout must be positive")
	}
	if s.Maps.Timeout <= 0 {
		problems = append(problems, "maps.timeout must be positive")
	}
	if s.Dispatch.Timeout <= 0 {
		problems = append(problems, "dispatch.timeout must be positive")
	}
	if s.Dispatch.PlaceLimit <= 0 {
		problems = append(problems, "dispatch.place-limit must be positive")
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if s.Server.SearchLimit <= 0 {
		problems = append(problems, "server.search-limit must be positive")
	}
	if s.Cache.RedisAddr != "" && s.Cache.TTL <= 0 {
		problems = append(problems, "cache.ttl must be positive when the cache is enabled")
	}
	if len(problems) > 0 {
		return errors.Errorf("invalid settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

func (s *Settings) MapsConfigured() bool {
	return s.Maps.APIKey != ""
}

func (s *Settings) LLMConfigured() bool {
	return s.LLM.BaseURL != ""
}

func (s *Settings) CacheEnabled() bool {
	return s.Cache.RedisAddr != ""
}

// Masked is a copy safe to print.
func (s *Settings) Masked() *Settings {
	ret := s.Clone()
	for _, p := range []*string{&ret.LLM.APIKey, &ret.Maps.APIKey, &ret.Cache.RedisPassword} {
		if *p != "" {
			*p = "****"
		}
	}
	return ret
}
