package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Comport values with special meaning.
const (
	ComportAuto      = "None"
	ComportSimulator = "sim"
)

type Config struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Wait         float64       `mapstructure:"wait"`
	Comport      string        `mapstructure:"comport"`
	Sleep        float64       `mapstructure:"sleep"`
	Baud         int           `mapstructure:"baud"`
	QueryTimeout time.Duration `mapstructure:"query-timeout"`
	WriteTimeout time.Duration `mapstructure:"write-timeout"`
	DBPath       string        `mapstructure:"db"`
	MDNS         bool          `mapstructure:"mdns"`
	MDNSName     string        `mapstructure:"mdns-name"`
	LogLevel     string        `mapstructure:"log-level"`
}

// Load parses args, then environment (PYMATA_*), then an optional
// --config file. Flags set on the command line win.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("pymata-gateway", pflag.ContinueOnError)
	fs.String("host", "localhost", "IP address or hostname to listen on")
	fs.Int("port", 9000, "WebSocket port")
	fs.Float64("wait", 2, "seconds to wait for the board after opening the serial port")
	fs.String("comport", ComportAuto, "serial device; None autodetects, sim runs the built-in simulator")
	fs.Float64("sleep", 0.001, "serial polling interval in seconds")
	fs.Int("baud", 57600, "serial baud rate")
	fs.Duration("query-timeout", 5*time.Second, "timeout for board queries")
	fs.Duration("write-timeout", 10*time.Second, "WebSocket write deadline")
	fs.String("db", "gateway.db", "sqlite session journal path; empty disables it")
	fs.Bool("mdns", false, "advertise the gateway over mDNS")
	fs.String("mdns-name", "pymata-gateway", "mDNS instance name")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	configFile := fs.String("config", "", "optional config file (yaml, json or toml)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("PYMATA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", *configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Wait < 0 {
		errs = append(errs, fmt.Errorf("wait must not be negative"))
	}
	if c.Sleep <= 0 {
		errs = append(errs, fmt.Errorf("sleep must be positive"))
	}
	if c.Baud <= 0 {
		errs = append(errs, fmt.Errorf("baud must be positive"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) WaitDuration() time.Duration {
	return seconds(c.Wait)
}

func (c *Config) PollInterval() time.Duration {
	return seconds(c.Sleep)
}

func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
