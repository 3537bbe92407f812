// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metadata

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/pdiddy/design-engine/internal/workspace"
)

// Watch evicts the cached metadata of spec whenever its document changes
// on disk. The first call starts the watcher; Close stops it.
func (s *Store) Watch(spec string) error {
	dir, err := s.layout.SpecDir(spec)
	if err != nil {
		return err
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watched[dir] {
		return nil
	}
	if s.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create fsnotify watcher: %w", err)
		}
		s.watcher = w
		s.watchWG.Add(1)
		go s.watchLoop(w)
	}
	if err := s.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	s.watched[dir] = true
	return nil
}

// Close stops the watcher, if one is running.
func (s *Store) Close() error {
	s.watchMu.Lock()
	w := s.watcher
	s.watcher = nil
	s.watched = map[string]bool{}
	s.watchMu.Unlock()

	if w == nil {
		return nil
	}
	err := w.Close()
	s.watchWG.Wait()
	return err
}

// watchLoop processes filesystem change events.
func (s *Store) watchLoop(w *fsnotify.Watcher) {
	defer s.watchWG.Done()
	const changed = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != workspace.MetadataFile || event.Op&changed == 0 {
				continue
			}
			spec := filepath.Base(filepath.Dir(event.Name))
			s.logger.Debug("metadata document changed", "spec", spec, "op", event.Op.String())
			s.Invalidate(spec)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", "error", err)
		}
	}
}
