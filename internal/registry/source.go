package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"intentgate/internal/logging"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// StaticSource serves a fixed catalog.
type StaticSource struct {
	mu      sync.RWMutex
	catalog Catalog
	err     error
}

// NewStaticSource creates a source that always returns c.
func NewStaticSource(c Catalog) *StaticSource {
	return &StaticSource{catalog: c}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Fetch(ctx context.Context) (Catalog, error) {
	if err := ctx.Err(); err != nil {
		return Catalog{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog, s.err
}

// Set replaces the catalog served by later fetches.
func (s *StaticSource) Set(c Catalog) {
	s.mu.Lock()
	s.catalog = c
	s.err = nil
	s.mu.Unlock()
}

// Fail makes later fetches return err until Set is called.
func (s *StaticSource) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// FileSource reads a YAML catalog from disk.
type FileSource struct {
	path     string
	debounce time.Duration
}

// NewFileSource creates a YAML file source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, debounce: 250 * time.Millisecond}
}

func (f *FileSource) Name() string { return "file:" + f.path }

func (f *FileSource) Fetch(ctx context.Context) (Catalog, error) {
	if err := ctx.Err(); err != nil {
		return Catalog{}, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read registry file: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse registry file: %w", err)
	}
	return c, nil
}

// Watch calls onChange after the file is written, renamed into place or
// recreated. Bursts of events within the debounce window collapse into one
// call. Watch blocks until ctx is done.
func (f *FileSource) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory so editors that replace the file are still seen.
	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logging.Get(logging.CategoryRegistry).Info("watching %s", f.path)

	target := filepath.Clean(f.path)
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(f.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(f.debounce)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryRegistry).Warn("watcher error: %v", err)
		}
	}
}

// WriteCatalog writes c as YAML to path.
func WriteCatalog(path string, c Catalog) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
