package filewatcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
)

const defaultSettle = 500 * time.Millisecond

// Watcher reports tabular files created or rewritten in a directory.
// Bursts of write events for one path collapse into a single report once the file settles.
type Watcher struct {
	watcher *fsnotify.Watcher
	settle  time.Duration
}

func New(settle time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if settle <= 0 {
		settle = defaultSettle
	}
	return &Watcher{watcher: w, settle: settle}, nil
}

func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan string, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan string, 100)
	go w.loop(ctx, out)
	return out, nil
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context, out chan<- string) {
	var (
		mu     sync.Mutex
		timers = map[string]*time.Timer{}
		wg     sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for path, t := range timers {
			if t.Stop() {
				wg.Done()
			}
			delete(timers, path)
		}
		mu.Unlock()
		wg.Wait()
		close(out)
	}()

	emit := func(path string, self *time.Timer) {
		defer wg.Done()
		mu.Lock()
		if timers[path] == self {
			delete(timers, path)
		}
		mu.Unlock()
		select {
		case out <- path:
		case <-ctx.Done():
		}
	}

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, exists := timers[path]; exists && t.Stop() {
			t.Reset(w.settle)
			return
		}
		wg.Add(1)
		var t *time.Timer
		t = time.AfterFunc(w.settle, func() { emit(path, t) })
		timers[path] = t
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !domain.DetectFileType(event.Name).IsTabular() || isHidden(event.Name) {
				continue
			}

			schedule(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("watch_dir_error", "error", err)
		}
	}
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 0 && base[0] == '.'
}

type fileIngestor interface {
	IngestOne(ctx context.Context, file domain.UploadedFile) (string, error)
}

// Feed ingests every reported path until paths is closed. Failures are logged and skipped.
func Feed(ctx context.Context, paths <-chan string, ingestor fileIngestor) {
	for path := range paths {
		if ctx.Err() != nil {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("watch_dir_read_failed", "path", path, "error", err)
			continue
		}
		id, err := ingestor.IngestOne(ctx, domain.UploadedFile{Filename: filepath.Base(path), Data: data})
		if err != nil {
			slog.Warn("watch_dir_ingest_failed", "path", path, "error", err)
			continue
		}
		slog.Info("watch_dir_ingested", "path", path, "document_id", id)
	}
}
