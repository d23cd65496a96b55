// Package config loads the writer configuration from a YAML file and
// KAIROSDB_* environment variables.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/juvenn/kairosdb-writer/naming"
	"github.com/juvenn/kairosdb-writer/naming/formatters"
	"github.com/juvenn/kairosdb-writer/transport"
	"github.com/juvenn/kairosdb-writer/types"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	envPrefix        = "KAIROSDB"
	convertToRateKey = "convert-to-rate"
)

type Config struct {
	KairosDBURI          string        `mapstructure:"kairosdb-uri"`
	Tags                 []string      `mapstructure:"tags"`
	AddHostTag           bool          `mapstructure:"add-host-tag"`
	HostSeparator        string        `mapstructure:"host-separator"`
	MetricSeparator      string        `mapstructure:"metric-separator"`
	MetricName           string        `mapstructure:"metric-name"`
	LowercaseMetricNames bool          `mapstructure:"lowercase-metric-names"`
	ConvertToRate        []string      `mapstructure:"convert-to-rate"`
	MaxSampleAge         time.Duration `mapstructure:"max-sample-age"`
	TypesDB              []string      `mapstructure:"types-db"`
	Formatter            string        `mapstructure:"formatter"`
	PluginFormatters     []string      `mapstructure:"plugin-formatters"`
	PluginFormatterPath  string        `mapstructure:"plugin-formatter-path"`
	Verbose              bool          `mapstructure:"verbose"`

	ConnectTimeout     time.Duration `mapstructure:"connect-timeout"`
	RequestTimeout     time.Duration `mapstructure:"request-timeout"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	InsecureSkipVerify bool          `mapstructure:"insecure-skip-verify"`

	ListenAddr          string        `mapstructure:"listen-addr"`
	HostSamplerInterval time.Duration `mapstructure:"host-sampler-interval"`
	StatsInterval       time.Duration `mapstructure:"stats-interval"`
	StatsAddr           string        `mapstructure:"stats-addr"`

	// convert-to-rate given without any plugin
	emptyConvertToRate bool
}

// AutomaticEnv only applies to keys viper knows of, so every key gets a
// default or an env binding. convert-to-rate has no default: an empty list
// there is only an error when it was given explicitly.
func setDefaults(v *viper.Viper) error {
	v.SetDefault("kairosdb-uri", "")
	v.SetDefault("tags", []string{})
	v.SetDefault("lowercase-metric-names", false)
	v.SetDefault("types-db", []string{})
	v.SetDefault("formatter", "")
	v.SetDefault("plugin-formatters", []string{})
	v.SetDefault("plugin-formatter-path", "")
	v.SetDefault("verbose", false)
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("insecure-skip-verify", false)
	v.SetDefault("add-host-tag", true)
	v.SetDefault("host-separator", "_")
	v.SetDefault("metric-separator", ".")
	v.SetDefault("metric-name", naming.DefaultTemplate)
	v.SetDefault("max-sample-age", 0)
	v.SetDefault("connect-timeout", 5*time.Second)
	v.SetDefault("request-timeout", 5*time.Second)
	v.SetDefault("listen-addr", "127.0.0.1:8060")
	v.SetDefault("host-sampler-interval", 0)
	v.SetDefault("stats-interval", time.Minute)
	v.SetDefault("stats-addr", "")
	return v.BindEnv(convertToRateKey)
}

// Load reads the file at path, if any, overlaid by environment variables such
// as KAIROSDB_KAIROSDB_URI. The result is not validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := setDefaults(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	_, inEnv := os.LookupEnv(envPrefix + "_CONVERT_TO_RATE")
	given := inEnv || v.InConfig(convertToRateKey)
	cfg.emptyConvertToRate = given && len(cfg.ConvertToRate) == 0
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var err error
	if _, e := c.Target(); e != nil {
		err = multierr.Append(err, e)
	}
	if _, e := c.StaticTags(); e != nil {
		err = multierr.Append(err, e)
	}
	if c.emptyConvertToRate {
		err = multierr.Append(err, errors.New("missing convert-to-rate values"))
	}
	if !naming.ValidSeparator(c.MetricSeparator) {
		err = multierr.Append(err, fmt.Errorf("invalid metric-separator %q", c.MetricSeparator))
	}
	if !naming.ValidSeparator(c.HostSeparator) {
		err = multierr.Append(err, fmt.Errorf("invalid host-separator %q", c.HostSeparator))
	}
	if c.MetricName == "" {
		err = multierr.Append(err, errors.New("metric-name must not be empty"))
	}
	if _, e := c.Resolver(); e != nil {
		err = multierr.Append(err, e)
	}
	if c.MaxSampleAge < 0 {
		err = multierr.Append(err, errors.New("max-sample-age must not be negative"))
	}
	if c.HostSamplerInterval < 0 || c.StatsInterval < 0 {
		err = multierr.Append(err, errors.New("intervals must not be negative"))
	}
	return err
}

func (c *Config) Target() (transport.Target, error) {
	return transport.ParseTarget(c.KairosDBURI)
}

// StaticTags parses tags given as "key=value".
func (c *Config) StaticTags() (map[string]string, error) {
	tags := make(map[string]string, len(c.Tags))
	var err error
	for _, tag := range c.Tags {
		k, v, ok := strings.Cut(tag, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			err = multierr.Append(err, fmt.Errorf("invalid tag: %s", tag))
			continue
		}
		tags[k] = v
	}
	return tags, err
}

func (c *Config) Sanitizer() naming.Sanitizer {
	return naming.Sanitizer{Separator: c.MetricSeparator, Lowercase: c.LowercaseMetricNames}
}

// Resolver builds the formatters: the global one, the named plugin formatters
// and the rule files under plugin-formatter-path, the latter winning on
// collisions.
func (c *Config) Resolver() (*naming.Resolver, error) {
	var global naming.Formatter
	if c.Formatter != "" {
		f, err := formatters.Load(c.Formatter)
		if err != nil {
			return nil, err
		}
		global = f
	}
	var plugin []naming.Formatter
	for _, ref := range c.PluginFormatters {
		f, err := formatters.Load(ref)
		if err != nil {
			return nil, err
		}
		plugin = append(plugin, f)
	}
	if c.PluginFormatterPath != "" {
		rules, err := formatters.LoadRules(c.PluginFormatterPath)
		if err != nil {
			return nil, err
		}
		plugin = append(plugin, rules...)
	}
	return naming.NewResolver(global, plugin...), nil
}

// Types loads the configured types.db files, or the embedded default.
func (c *Config) Types(logger *zap.Logger) (*types.Registry, error) {
	if len(c.TypesDB) == 0 {
		return types.Default(), nil
	}
	return types.LoadFiles(logger, c.TypesDB...)
}

// TransportOptions configures the connection manager.
func (c *Config) TransportOptions() []transport.Option {
	opts := []transport.Option{
		transport.WithDialTimeout(c.ConnectTimeout),
		transport.WithRequestTimeout(c.RequestTimeout),
	}
	if c.Username != "" {
		opts = append(opts, transport.WithUserAuth(c.Username, c.Password))
	}
	if c.InsecureSkipVerify {
		opts = append(opts, transport.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	}
	return opts
}
