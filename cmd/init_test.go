package cmd_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulschiretz/pgl-mirror/cmd"
	"github.com/paulschiretz/pgl-mirror/pkg/config"
	"github.com/paulschiretz/pgl-mirror/pkg/hints"
)

func TestPromptForConfirmation(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		prompt     string
		defaultYes bool
		want       bool
		wantPrompt string
	}{
		{"Explicit Yes", "y\n", "Continue?", false, true, "Continue? [y/N]: "},
		{"Explicit No", "n\n", "Continue?", true, false, "Continue? [Y/n]: "},
		{"Default Yes (Empty)", "\n", "Sure?", true, true, "Sure? [Y/n]: "},
		{"Default No (Empty)", "\n", "Sure?", false, false, "Sure? [y/N]: "},
		{"Case Insensitive", "YES\n", "Go?", false, true, "Go? [y/N]: "},
		{"Whitespace Handling", "   y   \n", "Clean?", false, true, "Clean? [y/N]: "},
		{"No Newline", "yes", "EOF?", false, true, "EOF? [y/N]: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := cmd.PromptForConfirmation(strings.NewReader(tt.input), &out, tt.prompt, tt.defaultYes)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), tt.wantPrompt)
		})
	}
}

func readConfig(t *testing.T, path string) config.Config {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal(data, &cfg))
	return cfg
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ConfigFileName)

	v := viper.New()
	v.Set(config.KeySource, "/data/src")
	v.Set(config.KeyReplica, "/data/rep")
	v.Set(config.KeyIntervalSeconds, 60)

	var out bytes.Buffer
	require.NoError(t, cmd.RunInit(v, cmd.InitOptions{Path: path, In: strings.NewReader(""), Out: &out}))

	cfg := readConfig(t, path)
	assert.Equal(t, "/data/src", cfg.Source)
	assert.Equal(t, "/data/rep", cfg.Replica)
	assert.Equal(t, 60, cfg.IntervalSeconds)
	assert.Equal(t, "mtime", cfg.Detection)

	t.Run("Existing File Declined", func(t *testing.T) {
		v2 := viper.New()
		v2.Set(config.KeySource, "/other/src")
		v2.Set(config.KeyReplica, "/other/rep")
		var out bytes.Buffer
		err := cmd.RunInit(v2, cmd.InitOptions{Path: path, In: strings.NewReader("n\n"), Out: &out})
		assert.ErrorIs(t, err, cmd.ErrInitCanceled)
		assert.True(t, hints.IsHint(err))
		assert.Contains(t, out.String(), "already exists")
		assert.Equal(t, "/data/src", readConfig(t, path).Source)
	})

	t.Run("Existing File Forced", func(t *testing.T) {
		v2 := viper.New()
		v2.Set(config.KeySource, "/other/src")
		v2.Set(config.KeyReplica, "/other/rep")
		require.NoError(t, cmd.RunInit(v2, cmd.InitOptions{Path: path, Force: true, In: strings.NewReader(""), Out: &bytes.Buffer{}}))
		assert.Equal(t, "/other/src", readConfig(t, path).Source)
	})

	t.Run("Invalid Settings", func(t *testing.T) {
		v2 := viper.New()
		v2.Set(config.KeySource, "/s")
		v2.Set(config.KeyReplica, "/r")
		v2.Set(config.KeyDetection, "bogus")
		err := cmd.RunInit(v2, cmd.InitOptions{Path: filepath.Join(t.TempDir(), "x.json"), Force: true})
		assert.ErrorIs(t, err, config.ErrInvalid)
	})
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, cmd.RunVersion(&out, "PGL-Mirror", "1.2.3"))
	assert.Equal(t, "PGL-Mirror version 1.2.3\n", out.String())
}
