package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/paulschiretz/pgl-mirror/cmd"
	"github.com/paulschiretz/pgl-mirror/pkg/buildinfo"
	"github.com/paulschiretz/pgl-mirror/pkg/config"
	"github.com/paulschiretz/pgl-mirror/pkg/hints"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
)

// flagKeys maps every persisted flag to its configuration key.
var flagKeys = map[string]string{
	"source":                 config.KeySource,
	"replica":                config.KeyReplica,
	"interval":               config.KeyIntervalSeconds,
	"log-file":               config.KeyLogFile,
	"log-level":              config.KeyLogLevel,
	"once":                   config.KeyOnce,
	"detection":              config.KeyDetection,
	"exclude":                config.KeyExclude,
	"lock":                   config.KeyLock,
	"metrics":                config.KeyMetrics,
	"metrics-textfile":       config.KeyMetricsTextfile,
	"log-rotate-max-size-mb": config.KeyLogRotateMaxSizeMB,
	"log-rotate-max-backups": config.KeyLogRotateMaxBackups,
	"log-rotate-format":      config.KeyLogRotateFormat,
}

// positionalKeys are the keys filled by `pgl-mirror [source] [replica] [interval] [log-file]`.
var positionalKeys = []string{config.KeySource, config.KeyReplica, config.KeyIntervalSeconds, config.KeyLogFile}

func addConfigFlags(fs *pflag.FlagSet) {
	d := config.NewDefault()
	fs.SortFlags = false
	fs.StringP("source", "s", "", "Source directory to mirror from")
	fs.StringP("replica", "r", "", "Replica directory to mirror into (created if missing)")
	fs.IntP("interval", "i", d.IntervalSeconds, "Seconds to wait between passes")
	fs.StringP("log-file", "l", d.LogFile, "Log file receiving every action")
	fs.String("log-level", d.LogLevel, "Logging level: 'debug', 'notice', 'info', 'warn', 'error'")
	fs.Bool("once", d.Once, "Run a single pass and exit")
	fs.String("detection", d.Detection, "File change detection: 'mtime' or 'content'")
	fs.StringSlice("exclude", d.Exclude, "Glob patterns hidden from both trees (repeatable or comma-separated)")
	fs.Bool("lock", d.Lock, "Lock the replica against concurrent mirrors")
	fs.Bool("metrics", d.Metrics, "Collect pass metrics and log progress")
	fs.String("metrics-textfile", d.MetricsTextfile, "Write Prometheus metrics to this file after every pass")
	fs.Int("log-rotate-max-size-mb", d.LogRotateMaxSizeMB, "Rotate the log file at this size (0 disables rotation)")
	fs.Int("log-rotate-max-backups", d.LogRotateMaxBackups, "Number of compressed log archives to keep (0 keeps all)")
	fs.String("log-rotate-format", d.LogRotateFormat, "Compression of rotated logs: 'gzip' or 'zstd'")
}

// loadConfig reads the config file and environment into v, binds the flags
// of c and applies positional arguments, which win over everything else.
func loadConfig(c *cobra.Command, v *viper.Viper, args []string) error {
	configFilePath, _ := c.Flags().GetString("config")
	if err := config.ReadFile(v, configFilePath); err != nil {
		return err
	}

	for name, key := range flagKeys {
		if f := c.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	for i, arg := range args {
		key := positionalKeys[i]
		if key == config.KeyIntervalSeconds {
			seconds, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("interval must be a whole number of seconds, got %q", arg)
			}
			v.Set(key, seconds)
			continue
		}
		v.Set(key, arg)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var opts cmd.MirrorOptions

	rootCmd := &cobra.Command{
		Use:   "pgl-mirror [source] [replica] [interval] [log-file]",
		Short: "Keep a replica directory an exact one-way mirror of a source directory",
		Long: "pgl-mirror periodically reconciles a replica directory against a source directory:\n" +
			"new and newer entries are copied, entries missing from the source are removed.",
		Version:      buildinfo.Version,
		Args:         cobra.MaximumNArgs(len(positionalKeys)),
		SilenceUsage: true,
		PreRunE: func(c *cobra.Command, args []string) error {
			return loadConfig(c, v, args)
		},
		RunE: func(c *cobra.Command, args []string) error {
			opts.Out = c.OutOrStdout()
			return cmd.RunMirror(c.Context(), v, opts)
		},
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default ./"+config.ConfigFileName+" or ~/.pgl-mirror/"+config.ConfigFileName+")")
	addConfigFlags(rootCmd.Flags())
	rootCmd.Flags().BoolVar(&opts.SummaryOnly, "summary-only", false, "Print only the pass summary, not every action")

	var initOpts cmd.InitOptions
	initCmd := &cobra.Command{
		Use:   "init [source] [replica] [interval] [log-file]",
		Short: "Write the effective settings to a config file",
		Args:  cobra.MaximumNArgs(len(positionalKeys)),
		PreRunE: func(c *cobra.Command, args []string) error {
			return loadConfig(c, v, args)
		},
		RunE: func(c *cobra.Command, args []string) error {
			initOpts.In = c.InOrStdin()
			initOpts.Out = c.OutOrStdout()
			if initOpts.Path == "" {
				initOpts.Path, _ = c.Flags().GetString("config")
			}
			return cmd.RunInit(v, initOpts)
		},
	}
	addConfigFlags(initCmd.Flags())
	initCmd.Flags().StringVarP(&initOpts.Path, "output", "o", "", "File to write (default: --config or ./"+config.ConfigFileName+")")
	initCmd.Flags().BoolVarP(&initOpts.Force, "force", "f", false, "Overwrite an existing file without asking")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.RunVersion(c.OutOrStdout(), buildinfo.Name, buildinfo.Version)
		},
	}

	rootCmd.AddCommand(initCmd, versionCmd)
	return rootCmd
}

func main() {
	// Set up a context that is canceled when an interrupt signal is received.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plog.Info("Starting "+buildinfo.Name, "version", buildinfo.Version, "pid", os.Getpid())
	err := newRootCmd().ExecuteContext(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case hints.IsHint(err):
		plog.Info(buildinfo.Name+" stopped", "reason", err)
	default:
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		stop()
		os.Exit(1)
	}
}
