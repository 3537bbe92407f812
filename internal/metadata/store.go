// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metadata persists per-spec workflow state and enforces the module
// review state machine.
//
// The JSON metadata document in each spec directory is the source of truth.
// Reads go through a TTL cache; every local mutation refreshes the cached
// copy and external edits evict it through a file watcher. Mutations for one
// spec are serialized so concurrent generation units cannot lose updates.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/design-engine/internal/apperr"
	"github.com/pdiddy/design-engine/internal/logging"
	"github.com/pdiddy/design-engine/internal/workspace"
	"github.com/pdiddy/design-engine/pkg/types"
)

const (
	cacheSize       = 256
	defaultCacheTTL = 5 * time.Minute
)

// Options configure a Store.
type Options struct {
	Layout       workspace.Layout
	CacheEnabled bool
	CacheTTL     time.Duration
	Recorder     TransitionRecorder
	Logger       *slog.Logger

	// Now stamps transitions. Nil uses time.Now.
	Now func() time.Time
}

// Store reads and writes SpecMetadata documents.
type Store struct {
	layout   workspace.Layout
	cache    *expirable.LRU[string, types.SpecMetadata]
	locks    *mutexMap
	loads    singleflight.Group
	recorder TransitionRecorder
	logger   *slog.Logger
	now      func() time.Time

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	watched map[string]bool
	watchWG sync.WaitGroup
}

// New returns a Store rooted at opts.Layout.
func New(opts Options) *Store {
	s := &Store{
		layout:   opts.Layout,
		locks:    newMutexMap(),
		recorder: opts.Recorder,
		logger:   logging.OrDiscard(opts.Logger),
		now:      opts.Now,
		watched:  map[string]bool{},
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.CacheEnabled {
		ttl := opts.CacheTTL
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		s.cache = expirable.NewLRU[string, types.SpecMetadata](cacheSize, nil, ttl)
	}
	return s
}

// Load returns the metadata for spec. A spec without a metadata document
// has empty metadata. The result is a copy the caller may modify.
func (s *Store) Load(spec string) (types.SpecMetadata, error) {
	if err := workspace.ValidateSpecName(spec); err != nil {
		return types.SpecMetadata{}, err
	}
	if s.cache != nil {
		if md, ok := s.cache.Get(spec); ok {
			return md.Clone(), nil
		}
	}

	v, err, _ := s.loads.Do(spec, func() (any, error) {
		s.locks.Lock(spec)
		defer s.locks.Unlock(spec)
		md, err := s.read(spec)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Add(spec, md)
		}
		return md, nil
	})
	if err != nil {
		return types.SpecMetadata{}, err
	}
	return v.(types.SpecMetadata).Clone(), nil
}

// GetState returns the workflow state of kind within spec.
func (s *Store) GetState(spec string, kind types.ModuleKind) (types.WorkflowState, error) {
	md, err := s.Load(spec)
	if err != nil {
		return "", err
	}
	return md.State(kind), nil
}

// CanProgress reports whether every tracked module of spec is Approved.
func (s *Store) CanProgress(spec string) (bool, error) {
	md, err := s.Load(spec)
	if err != nil {
		return false, err
	}
	return md.ComputeCanProgress(), nil
}

// SetState moves kind to state. actor names the reviewer of an approval or
// rejection; empty falls back to $USER. Approving an Approved module changes nothing.
func (s *Store) SetState(ctx context.Context, spec string, kind types.ModuleKind, state types.WorkflowState, actor string) (types.ModuleMetadataEntry, error) {
	var entry types.ModuleMetadataEntry
	var changes []Transition
	err := s.update(spec, func(md *types.SpecMetadata, now time.Time) error {
		from := md.State(kind)
		if err := CheckTransition(from, state); err != nil {
			return apperr.Invalid("setting module state", fmt.Errorf("%s/%s: %w", spec, kind, err))
		}
		who := ""
		if state == types.StateApproved || state == types.StateRejected {
			who = resolveActor(actor)
		}
		entry = apply(md.Modules[kind], state, who, now)
		if from == state && state == types.StateApproved {
			return errNoChange
		}
		md.Modules[kind] = entry
		changes = append(changes, Transition{Spec: spec, Kind: kind, From: from, To: state, Actor: who, At: now})
		return nil
	})
	if err != nil {
		return types.ModuleMetadataEntry{}, err
	}
	s.record(ctx, changes)
	return entry, nil
}

// InitModules sets every kind to PendingReview in one write.
func (s *Store) InitModules(ctx context.Context, spec string, kinds []types.ModuleKind) error {
	var changes []Transition
	err := s.update(spec, func(md *types.SpecMetadata, now time.Time) error {
		for _, kind := range kinds {
			from := md.State(kind)
			md.Modules[kind] = apply(md.Modules[kind], types.StatePendingReview, "", now)
			changes = append(changes, Transition{Spec: spec, Kind: kind, From: from, To: types.StatePendingReview, At: now})
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, changes)
	return nil
}

// DeleteModule removes kind from spec's metadata. Deleting an untracked
// module is an error.
func (s *Store) DeleteModule(ctx context.Context, spec string, kind types.ModuleKind) error {
	var changes []Transition
	err := s.update(spec, func(md *types.SpecMetadata, now time.Time) error {
		entry, ok := md.Modules[kind]
		if !ok {
			return apperr.Invalid("deleting module", fmt.Errorf("%w: %s/%s", ErrModuleNotTracked, spec, kind))
		}
		delete(md.Modules, kind)
		changes = append(changes, Transition{Spec: spec, Kind: kind, From: entry.WorkflowState, To: types.StateNotGenerated, At: now})
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, changes)
	return nil
}

// Invalidate drops the cached copy of spec.
func (s *Store) Invalidate(spec string) {
	if s.cache != nil && s.cache.Remove(spec) {
		s.logger.Debug("metadata cache invalidated", "spec", spec)
	}
}

var errNoChange = errors.New("no change")

// update runs a read-modify-write under the spec's lock. The durable
// document is re-read inside the lock so a stale cache cannot cause a lost
// update.
func (s *Store) update(spec string, mutate func(md *types.SpecMetadata, now time.Time) error) error {
	if err := workspace.ValidateSpecName(spec); err != nil {
		return err
	}
	s.locks.Lock(spec)
	defer s.locks.Unlock(spec)

	md, err := s.read(spec)
	if err != nil {
		return err
	}
	if err := mutate(&md, s.now().UTC()); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}
	md.Version = types.MetadataVersion
	md.CanProgressToNextPhase = md.ComputeCanProgress()
	if err := s.write(spec, md); err != nil {
		s.Invalidate(spec)
		return err
	}
	if s.cache != nil {
		s.cache.Add(spec, md)
	}
	return nil
}

func (s *Store) read(spec string) (types.SpecMetadata, error) {
	path, err := s.layout.MetadataPath(spec)
	if err != nil {
		return types.SpecMetadata{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.NewSpecMetadata(), nil
	}
	if err != nil {
		return types.SpecMetadata{}, apperr.Wrap(fmt.Errorf("reading metadata: %w", err), "loading metadata")
	}

	var md types.SpecMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return types.SpecMetadata{}, apperr.Invalid("loading metadata", fmt.Errorf("%w: %s: %v", ErrMalformedDocument, path, err))
	}
	if md.Modules == nil {
		md.Modules = map[types.ModuleKind]types.ModuleMetadataEntry{}
	}
	for kind, e := range md.Modules {
		if !e.WorkflowState.Valid() {
			return types.SpecMetadata{}, apperr.Invalid("loading metadata", fmt.Errorf("%w: %s: module %s has state %q", ErrMalformedDocument, path, kind, e.WorkflowState))
		}
	}
	if md.Version != "" && md.Version != types.MetadataVersion {
		s.logger.Warn("metadata document has an unexpected version", "spec", spec, "version", md.Version)
	}
	// The stored flag is derived; never trust it over the entries.
	md.CanProgressToNextPhase = md.ComputeCanProgress()
	return md, nil
}

func (s *Store) write(spec string, md types.SpecMetadata) error {
	path, err := s.layout.MetadataPath(spec)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	data = append(data, '\n')
	if err := workspace.WriteFileAtomic(path, data); err != nil {
		return apperr.Wrap(fmt.Errorf("writing metadata: %w", err), "saving metadata")
	}
	return nil
}

func (s *Store) record(ctx context.Context, changes []Transition) {
	if s.recorder == nil {
		return
	}
	for _, t := range changes {
		if err := s.recorder.RecordTransition(ctx, t); err != nil {
			s.logger.Warn("recording transition failed", "spec", t.Spec, "module", t.Kind, "error", err)
		}
	}
}

func resolveActor(actor string) string {
	if actor != "" {
		return actor
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

// mutexMap hands out one mutex per key.
type mutexMap struct {
	mu      sync.Mutex
	mutexes map[string]*sync.Mutex
}

func newMutexMap() *mutexMap {
	return &mutexMap{mutexes: make(map[string]*sync.Mutex)}
}

func (m *mutexMap) Lock(key string)   { m.get(key).Lock() }
func (m *mutexMap) Unlock(key string) { m.get(key).Unlock() }

func (m *mutexMap) get(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mu, ok := m.mutexes[key]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	m.mutexes[key] = mu
	return mu
}
