package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
)

// DefaultSettleDelay is how long a file must stop changing before it is handed off.
const DefaultSettleDelay = 500 * time.Millisecond

// InboxHandler receives the path of a settled inbox file.
type InboxHandler func(ctx context.Context, path string)

// InboxWatcher hands files dropped into a directory to a handler, once per
// distinct (path, size, mtime). Files already present at start are handed off
// first.
type InboxWatcher struct {
	dir      string
	supports func(string) bool
	handle   InboxHandler
	settle   time.Duration
	logger   logging.Logger

	mu      sync.Mutex
	pending map[string]*pendingFile
	seen    map[string]string
	wg      sync.WaitGroup
}

type pendingFile struct {
	timer *time.Timer
}

// InboxOption configures an InboxWatcher.
type InboxOption func(*InboxWatcher)

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) InboxOption {
	return func(w *InboxWatcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithInboxLogger sets the watcher logger.
func WithInboxLogger(l logging.Logger) InboxOption {
	return func(w *InboxWatcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewInboxWatcher watches dir for files the loader supports.
func NewInboxWatcher(dir string, loader *Loader, handle InboxHandler, opts ...InboxOption) *InboxWatcher {
	if loader == nil {
		loader = NewLoader()
	}
	w := &InboxWatcher{
		dir:      dir,
		supports: loader.Supports,
		handle:   handle,
		settle:   DefaultSettleDelay,
		logger:   logging.NewNopLogger(),
		pending:  make(map[string]*pendingFile),
		seen:     make(map[string]string),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run blocks until ctx ends. Handlers still running are waited for.
func (w *InboxWatcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeIngestionReadFailed, "failed to create inbox").WithDetail(w.dir)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIngestionReadFailed, "failed to start inbox watcher")
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return errors.Wrap(err, errors.ErrCodeIngestionReadFailed, "failed to watch inbox").WithDetail(w.dir)
	}

	w.drainExisting(ctx)
	w.logger.Info("watching inbox", logging.String("dir", w.dir))

	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if evt.Has(fsnotify.Create) || evt.Has(fsnotify.Write) {
				w.schedule(ctx, evt.Name)
			}
		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watcher error", logging.Err(werr))
		}
	}
}

func (w *InboxWatcher) drainExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.schedule(ctx, filepath.Join(w.dir, e.Name()))
		}
	}
}

// schedule restarts the settle timer for path.
func (w *InboxWatcher) schedule(ctx context.Context, path string) {
	if !w.supports(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok && p.timer.Stop() {
		p.timer.Reset(w.settle)
		return
	}
	p := &pendingFile{}
	w.pending[path] = p
	w.wg.Add(1)
	p.timer = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.fire(ctx, path, p)
	})
}

func (w *InboxWatcher) fire(ctx context.Context, path string, p *pendingFile) {
	w.mu.Lock()
	if w.pending[path] == p {
		delete(w.pending, path)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		w.mu.Unlock()
		return
	}
	stamp := info.ModTime().UTC().Format(time.RFC3339Nano) + "/" + strconv.FormatInt(info.Size(), 10)
	if w.seen[path] == stamp {
		w.mu.Unlock()
		return
	}
	w.seen[path] = stamp
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	w.logger.Debug("inbox file settled", logging.Source(filepath.Base(path)))
	w.handle(ctx, path)
}

// stop cancels pending timers and waits for running handlers.
func (w *InboxWatcher) stop() {
	w.mu.Lock()
	for path, p := range w.pending {
		if p.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

//Personal.AI order the ending
