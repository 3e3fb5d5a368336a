package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnvironment() *Environment {
	return NewEnvironment(
		map[string]string{"A": "A", "B": "B"},
		map[string]string{"A": "1", "B": "2", "C": "3"},
	)
}

func TestEnvironmentOverrideWins(t *testing.T) {
	env := newTestEnvironment()

	got, err := env.Get("A")
	require.NoError(t, err)
	assert.Equal(t, "A", got)

	got, err = env.Get("B")
	require.NoError(t, err)
	assert.Equal(t, "B", got)
}

func TestEnvironmentDefaults(t *testing.T) {
	got, err := newTestEnvironment().Get("C")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestEnvironmentMissing(t *testing.T) {
	_, err := newTestEnvironment().Get("D")
	require.Error(t, err)

	var missing *MissingKeyError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "D", missing.Key)
	assert.Contains(t, err.Error(), `"D"`)
}

func TestEnvironmentKeepsDottedKeysFlat(t *testing.T) {
	env := NewEnvironment(map[string]string{"a.b": "x"}, map[string]string{"a": "y"})

	got, err := env.Get("a.b")
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	got, err = env.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "y", got)
}

func TestDuration(t *testing.T) {
	env := NewEnvironment(map[string]string{"N": "45", "D": "2m", "BAD": "soon"}, nil)

	d, err := env.Duration("N")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, d)

	d, err = env.Duration("D")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	_, err = env.Duration("BAD")
	assert.Error(t, err)
}

func TestSettingsDefaults(t *testing.T) {
	s, err := NewEnvironment(nil, Defaults).Settings()
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", s.Region)
	assert.Equal(t, "graphite", s.Format)
	assert.Equal(t, 30*time.Second, s.Interval)
	assert.Equal(t, "DEBUG", s.LogLevel)
	assert.Equal(t, "aws.", s.Prefix)
	assert.Equal(t, "-", s.Output)
	assert.Equal(t, "", s.MetricsAddr)
	assert.Equal(t, "ses", s.SESService)
	assert.Equal(t, 24*time.Hour, s.StatsWindow)
}

func TestSettingsOverrides(t *testing.T) {
	env := NewEnvironment(map[string]string{
		KeyRegion:   "eu-west-1",
		KeyFormat:   "statsite",
		KeyInterval: "5",
	}, Defaults)

	s, err := env.Settings()
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", s.Region)
	assert.Equal(t, "statsite", s.Format)
	assert.Equal(t, 5*time.Second, s.Interval)
}

func TestSettingsMissingKey(t *testing.T) {
	defaults := map[string]string{}
	for k, v := range Defaults {
		defaults[k] = v
	}
	delete(defaults, KeyRegion)

	_, err := NewEnvironment(nil, defaults).Settings()
	var missing *MissingKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, KeyRegion, missing.Key)
}

func TestSettingsRejectsNonPositiveInterval(t *testing.T) {
	_, err := NewEnvironment(map[string]string{KeyInterval: "0"}, Defaults).Settings()
	assert.Error(t, err)
}

func TestEnviron(t *testing.T) {
	got := environ([]string{"A=1", "B=x=y", "NOEQUALS", "=hidden", "C="})
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "C": ""}, got)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ceilometer.yaml"), []byte("PREFIX: test.\nINTERVAL: 10\n"), 0o644))
	t.Chdir(dir)
	t.Setenv(KeyInterval, "7")

	env, err := Load()
	require.NoError(t, err)

	prefix, err := env.Get(KeyPrefix)
	require.NoError(t, err)
	assert.Equal(t, "test.", prefix)

	// The environment still shadows the file.
	interval, err := env.Duration(KeyInterval)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, interval)
}
