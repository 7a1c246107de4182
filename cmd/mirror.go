package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/paulschiretz/pgl-mirror/pkg/buildinfo"
	"github.com/paulschiretz/pgl-mirror/pkg/config"
	"github.com/paulschiretz/pgl-mirror/pkg/engine"
	"github.com/paulschiretz/pgl-mirror/pkg/logfile"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/promfile"
	"github.com/paulschiretz/pgl-mirror/pkg/report"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// MirrorOptions carries the settings of a mirror run that are not part of the
// persisted configuration.
type MirrorOptions struct {
	// Out receives the rendered pass reports.
	Out io.Writer
	// SummaryOnly leaves the per-action detail out of the console report.
	SummaryOnly bool
	// MaxPasses bounds the loop; zero runs until cancelled.
	MaxPasses int
}

// RunMirror handles the logic for the main mirror loop.
func RunMirror(ctx context.Context, v *viper.Viper, opts MirrorOptions) error {
	runConfig, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// CRITICAL: Validate the config for the run
	if err := runConfig.Validate(); err != nil {
		return err
	}

	// Set the global log level based on the final configuration.
	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))

	logPath, err := util.ExpandPath(runConfig.LogFile)
	if err != nil {
		return err
	}
	format, err := logfile.ParseFormat(runConfig.LogRotateFormat)
	if err != nil {
		return err
	}
	sink, err := logfile.Open(logPath, logfile.Options{
		MaxSizeBytes: runConfig.LogRotateMaxSizeBytes(),
		MaxBackups:   runConfig.LogRotateMaxBackups,
		Format:       format,
	})
	if err != nil {
		return err
	}
	plog.AttachSink(sink)
	defer func() {
		plog.AttachSink(nil)
		_ = sink.Close()
	}()

	// Log the Summary
	runConfig.LogSummary()

	plan, err := engine.GeneratePlan(runConfig)
	if err != nil {
		return err
	}
	plan.MaxPasses = opts.MaxPasses

	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	runnerOpts := []engine.RunnerOption{engine.WithRotator(sink)}
	if runConfig.Metrics {
		namespace := strings.ReplaceAll(buildinfo.AppID, "-", "_")
		runnerOpts = append(runnerOpts, engine.WithExporter(promfile.New(namespace)))
	}
	runner := engine.NewRunner(afero.NewOsFs(), report.New(out, opts.SummaryOnly), runnerOpts...)

	startTime := time.Now()
	err = runner.Run(ctx, plan)
	duration := time.Since(startTime).Round(time.Millisecond)
	if errors.Is(err, context.Canceled) {
		plog.Info(buildinfo.Name+" stopped.", "duration", duration)
		return nil
	}
	if err != nil {
		return err // The error will be logged with full details by main()
	}
	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration)
	return nil
}
