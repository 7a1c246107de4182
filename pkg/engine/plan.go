package engine

import (
	"fmt"
	"time"

	"github.com/paulschiretz/pgl-mirror/pkg/config"
	"github.com/paulschiretz/pgl-mirror/pkg/lockfile"
	"github.com/paulschiretz/pgl-mirror/pkg/pathsync"
	"github.com/paulschiretz/pgl-mirror/pkg/preflight"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// systemExcludePatterns are hidden from every scan so the mirror never copies
// or deletes its own bookkeeping files.
var systemExcludePatterns = []string{lockfile.LockFileName}

// Plan is the resolved, validated input of Runner.Run.
type Plan struct {
	SourceRoot  string
	ReplicaRoot string

	// Interval is the pause between the end of one pass and the start of the next.
	Interval time.Duration
	// Once runs a single pass and returns its error.
	Once bool
	// MaxPasses stops the loop after that many passes. Zero means unbounded.
	MaxPasses int

	Detection  pathsync.Detection
	Exclusions []string

	Lock      bool
	Preflight preflight.Plan

	Metrics          bool
	ProgressInterval time.Duration
	MetricsTextfile  string
}

// GeneratePlan resolves the roots of cfg and turns it into a Plan. cfg must
// already be valid.
func GeneratePlan(cfg config.Config) (*Plan, error) {
	sourceRoot, err := util.ResolveRoot(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("invalid source path: %w", err)
	}
	replicaRoot, err := util.ResolveRoot(cfg.Replica)
	if err != nil {
		return nil, fmt.Errorf("invalid replica path: %w", err)
	}
	detection, err := pathsync.ParseDetection(cfg.Detection)
	if err != nil {
		return nil, err
	}

	var metricsTextfile string
	if cfg.MetricsTextfile != "" {
		if metricsTextfile, err = util.ExpandPath(cfg.MetricsTextfile); err != nil {
			return nil, err
		}
	}

	return &Plan{
		SourceRoot:       sourceRoot,
		ReplicaRoot:      replicaRoot,
		Interval:         cfg.Interval(),
		Once:             cfg.Once,
		Detection:        detection,
		Exclusions:       util.MergeAndDeduplicate(systemExcludePatterns, cfg.Exclude),
		Lock:             cfg.Lock,
		Preflight:        preflight.FullPlan(),
		Metrics:          cfg.Metrics,
		ProgressInterval: 10 * time.Second,
		MetricsTextfile:  metricsTextfile,
	}, nil
}
