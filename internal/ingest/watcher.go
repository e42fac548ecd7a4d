package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // emit files already present at start
	SkipHidden  bool          // ignore dot files and dot directories
	Debounce    time.Duration // coalesce rapid create/write bursts per path
}

// StartWatcher emits the paths of allowed files that are created or
// rewritten under the roots. Both channels close when ctx ends.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watch.create_failed", "error", err)
		return nil, nil, err
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)
	var initial []string

	for _, root := range cfg.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if cfg.SkipHidden && path != root && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && AllowedExt(filepath.Ext(path)) {
				initial = append(initial, path)
			}
			return nil
		})
		if err != nil {
			logger.Error("ingest.watch.add_root_failed", "root", root, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	d := &debouncer{delay: cfg.Debounce, out: evCh, done: make(chan struct{}), pending: map[string]*time.Timer{}}

	go func() {
		defer close(errCh)
		defer close(evCh)
		defer d.stop()
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watch.close_failed", "error", err)
			}
		}()

		for _, p := range initial {
			select {
			case evCh <- p:
			case <-ctx.Done():
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				if e.Has(fsnotify.Create) {
					if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("ingest.watch.add_dir_failed", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if AllowedExt(filepath.Ext(e.Name)) && (e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename)) {
					d.push(ctx, e.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// debouncer delays each path until it has been quiet for delay.
type debouncer struct {
	delay time.Duration
	out   chan<- string
	done  chan struct{}

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	pending map[string]*time.Timer
}

func (d *debouncer) push(ctx context.Context, path string) {
	if d.delay <= 0 {
		select {
		case d.out <- path:
		case <-ctx.Done():
		}
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.pending[path]; ok && t.Stop() {
		t.Reset(d.delay)
		return
	}
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.pending[path] == t {
			delete(d.pending, path)
		}
		stopped := d.stopped
		d.mu.Unlock()
		if stopped {
			return
		}
		select {
		case d.out <- path:
		case <-ctx.Done():
		case <-d.done:
		}
	})
	d.pending[path] = t
}

// stop cancels pending timers and waits for in-flight sends, so out can be
// closed safely afterwards.
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	close(d.done)
	for p, t := range d.pending {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.pending, p)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
