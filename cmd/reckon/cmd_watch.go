package main

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/reckon/internal/entity"
	"github.com/joseph-ayodele/reckon/internal/ingest"
)

var watchFlags struct {
	initialScan bool
	skipHidden  bool
	debounce    time.Duration
	workers     int
	queueSize   int
	timeout     time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>...",
	Short: "Analyze documents as they appear in a directory",
	Long: `Watch directories recursively and analyze every new or rewritten PDF,
JPG or PNG. Files with content already seen in this session are skipped.
Results are printed as one JSON object per line until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.BoolVar(&watchFlags.initialScan, "initial-scan", false, "Also analyze files already present")
	f.BoolVar(&watchFlags.skipHidden, "skip-hidden", true, "Ignore dot files and dot directories")
	f.DurationVar(&watchFlags.debounce, "debounce", 500*time.Millisecond, "Quiet period before a changed file is picked up")
	f.IntVar(&watchFlags.workers, "workers", 2, "Concurrent analyses")
	f.IntVar(&watchFlags.queueSize, "queue-size", 64, "Pending files before the watcher blocks")
	f.DurationVar(&watchFlags.timeout, "timeout", 3*time.Minute, "Per-file processing timeout")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.Logger

	ctx := cmd.Context()
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       args,
		InitialScan: watchFlags.initialScan,
		SkipHidden:  watchFlags.skipHidden,
		Debounce:    watchFlags.debounce,
	}, logger)
	if err != nil {
		return err
	}

	var outMu sync.Mutex
	out := cmd.OutOrStdout()
	queue := ingest.NewQueue(func(ctx context.Context, job ingest.Job) error {
		outs, err := a.Processor.AnalyzeDocuments(ctx, []entity.Artifact{job.Artifact})
		if err != nil {
			return err
		}
		outMu.Lock()
		defer outMu.Unlock()
		if err := writeJSON(out, documentResults([]entity.Artifact{job.Artifact}, outs)[0]); err != nil {
			return err
		}
		return outs[0].Err
	}, logger,
		ingest.WithWorkers(watchFlags.workers),
		ingest.WithQueueSize(watchFlags.queueSize),
		ingest.WithProcessTimeout(watchFlags.timeout),
	)
	defer queue.Shutdown(context.Background())

	dedupe := ingest.NewDeduper()
	logger.Info("watch.start", "roots", args)
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch.stop")
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch.error", "error", err)
		case path, ok := <-paths:
			if !ok {
				return nil
			}
			seen, hash, err := dedupe.Seen(path)
			if err != nil {
				logger.Warn("watch.hash.failed", "path", path, "error", err)
				continue
			}
			if seen {
				logger.Info("watch.duplicate", "path", path, "sha256", hash)
				continue
			}
			artifact, err := ingest.ArtifactFromPath(path)
			if err != nil {
				logger.Warn("watch.rejected", "path", path, "error", err)
				continue
			}
			if err := queue.Enqueue(ctx, ingest.Job{
				Artifact:    artifact,
				SubmittedAt: time.Now(),
				TraceID:     hash[:12],
			}); err != nil {
				logger.Warn("watch.enqueue.failed", "path", path, "error", err)
			}
		}
	}
}
