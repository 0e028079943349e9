package rules

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/utils"
)

// Store holds the current rule table and hot-reloads it when the underlying
// file changes. A reload that fails to parse keeps the previous table.
type Store struct {
	path string
	log  *logger.Logger

	mu    sync.RWMutex
	table *Table
}

// NewStore loads the rule table once; the initial load must succeed.
func NewStore(path string, log *logger.Logger) (*Store, error) {
	table, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, log: log, table: table}, nil
}

// Current returns the active rule table.
func (s *Store) Current() *Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

func (s *Store) reload() {
	table, err := Load(s.path)
	if err != nil {
		s.log.Error("failed to reload rules, keeping previous table",
			logger.StringField("path", s.path),
			logger.ErrorField(err))
		return
	}

	s.mu.Lock()
	s.table = table
	s.mu.Unlock()

	s.log.Info("rules reloaded",
		logger.StringField("path", s.path),
		logger.StringField("version", table.Version))
}

// Watch reloads the table whenever the rules file is rewritten, until the
// context is cancelled. Watching the parent directory survives the
// rename-and-replace dance editors and config mounts do.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}

	utils.GoSafe(func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					s.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("rules watcher error", logger.ErrorField(err))
			}
		}
	})
	return nil
}
