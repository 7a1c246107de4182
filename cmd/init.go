package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/paulschiretz/pgl-mirror/pkg/config"
	"github.com/paulschiretz/pgl-mirror/pkg/hints"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// ErrInitCanceled is returned when the user declines to overwrite a config file.
var ErrInitCanceled = hints.New("init canceled by user")

// InitOptions controls RunInit.
type InitOptions struct {
	// Path of the config file to write.
	Path string
	// Force overwrites an existing file without asking.
	Force bool
	In    io.Reader
	Out   io.Writer
}

// RunInit handles the logic for the 'init' command: it writes the effective
// configuration (defaults, an existing file, environment and flags) to a
// config file so later runs need no arguments.
func RunInit(v *viper.Viper, opts InitOptions) error {
	if opts.Path == "" {
		opts.Path = config.ConfigFileName
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	absConfigPath, err := util.ExpandPath(opts.Path)
	if err != nil {
		return err
	}

	runConfig, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if runConfig.Source == "" || runConfig.Replica == "" {
		plog.Warn("Source or replica is not set; edit the generated file before running.", "path", absConfigPath)
	} else if err := runConfig.Validate(); err != nil {
		return err
	}

	if !opts.Force {
		if _, err := os.Stat(absConfigPath); err == nil {
			fmt.Fprintf(opts.Out, "WARNING: Configuration file already exists at %s.\n", absConfigPath)
			if !PromptForConfirmation(opts.In, opts.Out, "Overwrite it?", false) {
				return ErrInitCanceled
			}
		}
	}

	if err := config.Generate(absConfigPath, runConfig); err != nil {
		return fmt.Errorf("failed to generate config file: %w", err)
	}
	return nil
}

// PromptForConfirmation prompts the user for a yes/no response.
func PromptForConfirmation(in io.Reader, out io.Writer, prompt string, defaultYes bool) bool {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Fprintf(out, "%s %s: ", prompt, suffix)

	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))

	if response == "" {
		return defaultYes
	}
	return response == "y" || response == "yes"
}
