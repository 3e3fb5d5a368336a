package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Recognised setting names.
const (
	KeyRegion      = "AWS_REGION"
	KeyFormat      = "FORMAT"
	KeyInterval    = "INTERVAL"
	KeyLogLevel    = "LOGLEVEL"
	KeyPrefix      = "PREFIX"
	KeyOutput      = "OUTPUT"
	KeyMetricsAddr = "METRICS_ADDR"
	KeySESService  = "SES_SERVICE"
	KeyStatsWindow = "STATS_WINDOW"
)

// Defaults is the default layer used by Load.
var Defaults = map[string]string{
	KeyRegion:      "us-east-1",
	KeyFormat:      "graphite",
	KeyInterval:    "30",
	KeyLogLevel:    "DEBUG",
	KeyPrefix:      "aws.",
	KeyOutput:      "-",
	KeyMetricsAddr: "",
	KeySESService:  "ses",
	KeyStatsWindow: "24h",
}

// keyDelimiter never occurs in environment variable names, so viper keeps
// every key flat instead of splitting on dots.
const keyDelimiter = "::"

// MissingKeyError is returned when a key is neither overridden nor defaulted.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing configuration key %q", e.Key)
}

// Environment resolves settings from an override layer over a default layer.
// It is immutable once constructed.
type Environment struct {
	v *viper.Viper
}

// NewEnvironment builds an Environment in which every key of overrides
// shadows the same key of defaults.
func NewEnvironment(overrides, defaults map[string]string) *Environment {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for k, val := range overrides {
		v.Set(k, val)
	}
	return &Environment{v: v}
}

// Load reads configuration from (in decreasing priority):
//  1. the process environment (e.g. AWS_REGION)
//  2. an optional ceilometer.yaml in ./configs or the working directory
//  3. Defaults
func Load() (*Environment, error) {
	env := NewEnvironment(environ(os.Environ()), Defaults)

	env.v.SetConfigName("ceilometer")
	env.v.SetConfigType("yaml")
	env.v.AddConfigPath("./configs")
	env.v.AddConfigPath(".")
	if err := env.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return env, nil
}

// environ turns KEY=VALUE pairs into a map. Entries without '=' are skipped.
func environ(pairs []string) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = val
	}
	return out
}

// Get returns the override for key if present, otherwise its default.
func (e *Environment) Get(key string) (string, error) {
	if !e.v.IsSet(key) {
		return "", &MissingKeyError{Key: key}
	}
	return e.v.GetString(key), nil
}

// Int resolves key and converts it to an integer.
func (e *Environment) Int(key string) (int, error) {
	s, err := e.Get(key)
	if err != nil {
		return 0, err
	}
	n, err := cast.ToIntE(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// Duration resolves key as a duration. A bare number is read as seconds.
func (e *Environment) Duration(key string) (time.Duration, error) {
	s, err := e.Get(key)
	if err != nil {
		return 0, err
	}
	s = strings.TrimSpace(s)
	if n, err := cast.ToFloat64E(s); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Settings is the typed view of an Environment, resolved once at startup.
type Settings struct {
	Region      string
	Format      string
	Interval    time.Duration
	LogLevel    string
	Prefix      string
	Output      string
	MetricsAddr string
	SESService  string
	StatsWindow time.Duration
}

// Settings resolves every recognised key. The first unresolvable or
// invalid key aborts resolution.
func (e *Environment) Settings() (*Settings, error) {
	var (
		s   Settings
		err error
	)
	strs := []struct {
		key string
		dst *string
	}{
		{KeyRegion, &s.Region},
		{KeyFormat, &s.Format},
		{KeyLogLevel, &s.LogLevel},
		{KeyPrefix, &s.Prefix},
		{KeyOutput, &s.Output},
		{KeyMetricsAddr, &s.MetricsAddr},
		{KeySESService, &s.SESService},
	}
	for _, f := range strs {
		if *f.dst, err = e.Get(f.key); err != nil {
			return nil, err
		}
	}

	if s.Interval, err = e.Duration(KeyInterval); err != nil {
		return nil, err
	}
	if s.Interval <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", KeyInterval, s.Interval)
	}
	if s.StatsWindow, err = e.Duration(KeyStatsWindow); err != nil {
		return nil, err
	}
	if s.StatsWindow <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", KeyStatsWindow, s.StatsWindow)
	}
	if s.Region == "" {
		return nil, fmt.Errorf("%s must not be empty", KeyRegion)
	}
	return &s, nil
}
