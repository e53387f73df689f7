// Package watch ingests files dropped into a directory. Created or rewritten
// files are uploaded once they have been quiet for the debounce interval, and
// optionally embedded straight away. Removing a file deletes its document.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/logger"
)

// DefaultDebounce is how long a file must be quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Loader reads a file as an upload.
type Loader interface {
	Fetch(ctx context.Context, location string) (*domain.Upload, error)
}

// Watcher ingests files from one directory.
type Watcher struct {
	dir       string
	documents driving.DocumentService
	loader    Loader
	pipeline  driving.EmbeddingPipeline
	debounce  time.Duration

	mu      sync.Mutex
	tracked map[string]string      // path -> document id
	timers  map[string]*time.Timer // path -> pending ingest
	ready   chan string
	done    chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithEmbedding embeds each ingested document with the pipeline.
func WithEmbedding(pipeline driving.EmbeddingPipeline) Option {
	return func(w *Watcher) { w.pipeline = pipeline }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for dir.
func New(dir string, documents driving.DocumentService, loader Loader, opts ...Option) *Watcher {
	w := &Watcher{
		dir:       dir,
		documents: documents,
		loader:    loader,
		debounce:  DefaultDebounce,
		tracked:   make(map[string]string),
		timers:    make(map[string]*time.Timer),
		ready:     make(chan string, 64),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. A Watcher runs once.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	logger.Get().Info().Str("dir", w.dir).Dur("debounce", w.debounce).Msg("watching directory")

	defer close(w.done)
	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleFsEvent(ctx, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		case path := <-w.ready:
			w.ingest(ctx, path)
		}
	}
}

// handleFsEvent schedules or cancels work for one event.
// Directories, hidden files and chmod-only events are ignored.
func (w *Watcher) handleFsEvent(ctx context.Context, event fsnotify.Event) {
	if hidden(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(event.Name)
		w.forget(ctx, event.Name)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return
		}
		w.schedule(event.Name)
	}
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// ingest uploads path, replacing the document of an earlier version.
func (w *Watcher) ingest(ctx context.Context, path string) {
	upload, err := w.loader.Fetch(ctx, path)
	if err != nil {
		logger.Warn("watch: reading %s: %v", path, err)
		return
	}

	w.forget(ctx, path)

	doc, err := w.documents.Upload(ctx, upload)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedType) || errors.Is(err, domain.ErrInvalidInput) {
			logger.Debug("watch: skipping %s: %v", path, err)
			return
		}
		logger.Get().Error().Str("path", path).Err(err).Msg("watch upload failed")
		return
	}

	w.mu.Lock()
	w.tracked[path] = doc.ID
	w.mu.Unlock()
	logger.Get().Info().Str("path", path).Str("document", doc.ID).Msg("ingested file")

	if w.pipeline == nil {
		return
	}
	result, err := w.pipeline.EmbedDocument(ctx, domain.EmbedRequest{DocumentID: doc.ID})
	if err != nil {
		logger.Get().Error().Str("document", doc.ID).Err(err).Msg("watch embed failed")
		return
	}
	logger.Get().Info().Str("document", doc.ID).Int("chunks", result.ChunkCount).Msg("embedded file")
}

// forget deletes the document ingested from path, if any.
func (w *Watcher) forget(ctx context.Context, path string) {
	w.mu.Lock()
	id, ok := w.tracked[path]
	delete(w.tracked, path)
	w.mu.Unlock()
	if !ok {
		return
	}

	if err := w.documents.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Warn("watch: deleting document %s for %s: %v", id, path, err)
	}
}

// Tracked returns the document id ingested from path.
func (w *Watcher) Tracked(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.tracked[path]
	return id, ok
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
