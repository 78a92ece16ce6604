package artifact

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the artifact bundle when the files under dir change, so a
// retrain can be picked up without restarting the service. Reload events are
// debounced: Save writes two files back to back.
type Watcher struct {
	dir      string
	logger   *zap.Logger
	onReload func(*Bundle)
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

const reloadDebounce = 500 * time.Millisecond

// NewWatcher starts watching dir. onReload receives every successfully
// loaded bundle; load failures are logged and the previous bundle stays
// active.
func NewWatcher(dir string, logger *zap.Logger, onReload func(*Bundle)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		dir:      dir,
		logger:   logger,
		onReload: onReload,
		fsw:      fsw,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(filepath.Base(event.Name), ".json") {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			bundle, err := Load(w.dir)
			if err != nil {
				w.logger.Warn("artifact reload failed, keeping current bundle",
					zap.String("dir", w.dir),
					zap.Error(err))
				continue
			}
			w.logger.Info("artifacts reloaded",
				zap.String("family", bundle.Meta.Family),
				zap.String("run_id", bundle.Meta.RunID),
				zap.Float64("threshold", bundle.Meta.Threshold))
			w.onReload(bundle)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
