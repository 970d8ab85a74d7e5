package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/taskforge/pkg/domain/worker"
	"github.com/felixgeelhaar/taskforge/pkg/storage"
)

// WorkerReloader keeps a registry in step with its YAML seed file.
type WorkerReloader struct {
	Registry *worker.Registry
	Path     string
	Logger   *slog.Logger
}

// Reload re-reads the seed file and swaps the registry's worker set. A file
// that fails to parse or validate leaves the registry as it was.
func (r *WorkerReloader) Reload() error {
	profiles, err := storage.LoadWorkers(r.Path)
	if err != nil {
		return err
	}
	return r.Registry.Replace(profiles)
}

// Watch reloads on every change until ctx ends.
func (r *WorkerReloader) Watch(ctx context.Context, debounce time.Duration) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := NewFileWatcher(r.Path, debounce, func(path string) {
		if err := r.Reload(); err != nil {
			logger.Warn("worker reload failed; keeping previous registry", "path", path, "error", err)
			return
		}
		logger.Info("worker registry reloaded", "path", path, "workers", r.Registry.Len())
	})
	if err != nil {
		return err
	}
	return fw.Run(ctx)
}
