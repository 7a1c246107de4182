package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulschiretz/pgl-mirror/pkg/config"
)

// parse builds a command carrying the mirror flags, parses args into it and
// loads the resulting configuration.
func parse(t *testing.T, args []string) (config.Config, error) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	c := &cobra.Command{Use: "test"}
	c.Flags().StringP("config", "c", "", "")
	addConfigFlags(c.Flags())
	require.NoError(t, c.ParseFlags(args))

	v := viper.New()
	if err := loadConfig(c, v, c.Flags().Args()); err != nil {
		return config.Config{}, err
	}
	return config.Load(v)
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := parse(t, nil)
		require.NoError(t, err)
		assert.Equal(t, config.NewDefault(), cfg)
	})

	t.Run("Positional Arguments", func(t *testing.T) {
		cfg, err := parse(t, []string{"/src", "/rep", "30", "/var/log/mirror.log"})
		require.NoError(t, err)
		assert.Equal(t, "/src", cfg.Source)
		assert.Equal(t, "/rep", cfg.Replica)
		assert.Equal(t, 30, cfg.IntervalSeconds)
		assert.Equal(t, "/var/log/mirror.log", cfg.LogFile)
	})

	t.Run("Flags", func(t *testing.T) {
		cfg, err := parse(t, []string{"--source=/a", "-r", "/b", "--once", "--detection=content", "--exclude=*.tmp,cache/**", "--lock=false"})
		require.NoError(t, err)
		assert.Equal(t, "/a", cfg.Source)
		assert.Equal(t, "/b", cfg.Replica)
		assert.True(t, cfg.Once)
		assert.Equal(t, "content", cfg.Detection)
		assert.Equal(t, []string{"*.tmp", "cache/**"}, cfg.Exclude)
		assert.False(t, cfg.Lock)
	})

	t.Run("Positional Wins Over Flag", func(t *testing.T) {
		cfg, err := parse(t, []string{"--source=/flag", "/positional"})
		require.NoError(t, err)
		assert.Equal(t, "/positional", cfg.Source)
	})

	t.Run("Config File And Environment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"source": "/file/src", "replica": "/file/rep", "interval_seconds": 45}`), 0644))
		t.Setenv("PGL_MIRROR_REPLICA", "/env/rep")

		cfg, err := parse(t, []string{"--config", path})
		require.NoError(t, err)
		assert.Equal(t, "/file/src", cfg.Source)
		assert.Equal(t, "/env/rep", cfg.Replica)
		assert.Equal(t, 45, cfg.IntervalSeconds)
	})

	t.Run("Bad Interval", func(t *testing.T) {
		_, err := parse(t, []string{"/src", "/rep", "soon"})
		assert.ErrorContains(t, err, "whole number of seconds")
	})
}

func TestRootCmd(t *testing.T) {
	t.Run("Version", func(t *testing.T) {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs([]string{"version"})
		require.NoError(t, root.Execute())
		assert.Contains(t, out.String(), "version")
	})

	t.Run("Too Many Arguments", func(t *testing.T) {
		root := newRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"a", "b", "1", "log", "extra"})
		assert.Error(t, root.Execute())
	})

	t.Run("Init Writes Config", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		path := filepath.Join(t.TempDir(), config.ConfigFileName)
		root := newRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetArgs([]string{"init", "-o", path, "/src", "/rep", "15"})
		require.NoError(t, root.Execute())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"interval_seconds": 15`)
		assert.Contains(t, string(data), `"source": "/src"`)
	})
}
