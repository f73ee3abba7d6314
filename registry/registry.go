// Package registry is the process-wide, concurrency-safe map from table
// identity to its live state: schema, open parts, and the handle-count
// that lets a pending DROP TABLE wait for in-flight scans to finish.
//
// Grounded on polarsignals-arcticdb's db.go ColumnStore/DB/Table
// double-checked-locking pattern for the exclusive-insert path, with an
// added atomic snapshot pointer so that CompiledFilter scans and the
// background merger can read an Entry's current part list lock-free.
package registry

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/touchhouse/touchhouse/part"
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/toucherr"
)

// Snapshot is the immutable, atomically-swapped view of one table's part
// set. Readers (scans, the merger's part-picker) load a *Snapshot once
// and iterate it without holding any lock; writers (insert publish,
// merge swap) build a new Snapshot and atomically install it.
type Snapshot struct {
	Parts []*part.Info
}

// Entry is one table's registry slot: its immutable metadata, a mutex
// that serializes structural writes (publish, merge swap), an atomic
// pointer readers use lock-free, and a handle count that gates DROP
// TABLE against in-flight scans (Open Question 3, see DESIGN.md).
type Entry struct {
	Def  schema.TableDef
	Meta *schema.TableMetadata
	Dir  string

	mu       sync.Mutex
	snapshot atomic.Pointer[Snapshot]

	handles  atomic.Int64
	dropping atomic.Bool
	poisoned atomic.Bool
}

func newEntry(def schema.TableDef, meta *schema.TableMetadata, dir string) *Entry {
	e := &Entry{Def: def, Meta: meta, Dir: dir}
	e.snapshot.Store(&Snapshot{})
	return e
}

// Load returns the entry's current part snapshot without blocking.
func (e *Entry) Load() *Snapshot { return e.snapshot.Load() }

// Lock acquires the entry's exclusive write lock for a structural
// mutation (publish a new part, swap in a merge result).
func (e *Entry) Lock() { e.mu.Lock() }

// Unlock releases the exclusive write lock acquired by Lock.
func (e *Entry) Unlock() { e.mu.Unlock() }

// Store atomically installs a new snapshot. Callers must hold Lock.
func (e *Entry) Store(s *Snapshot) { e.snapshot.Store(s) }

// Poison marks the entry unusable after an unrecoverable I/O failure
// (e.g. a filesystem rename succeeded but the rollback of a failed one
// could not be completed). Every subsequent Acquire on this entry (and
// so every INSERT and SELECT) fails with toucherr.Poisoned until the
// process restarts and recovery reloads the table from disk. DROP TABLE
// and the background merger do not check the flag.
func (e *Entry) Poison() { e.poisoned.Store(true) }

func (e *Entry) checkUsable() error {
	if e.poisoned.Load() {
		return toucherr.Newf(toucherr.Poisoned, "table %s is poisoned, restart required", e.Def)
	}
	if e.dropping.Load() {
		return toucherr.Newf(toucherr.TableNotFound, "table %s is being dropped", e.Def)
	}
	return nil
}

// Acquire registers a read handle against the entry, returning an error
// if the table is mid-drop or poisoned. Every scan must Acquire before
// reading Load() and Release when done.
func (e *Entry) Acquire() error {
	if err := e.checkUsable(); err != nil {
		return err
	}
	e.handles.Add(1)
	// Re-check after incrementing: a drop that started the instant before
	// our check above could have already observed zero handles and begun
	// unlinking. Losing this race is safe for the caller — it just sees
	// TableNotFound instead of reading a half-deleted directory.
	if e.dropping.Load() {
		e.handles.Add(-1)
		return toucherr.Newf(toucherr.TableNotFound, "table %s is being dropped", e.Def)
	}
	return nil
}

// Release returns a handle acquired via Acquire.
func (e *Entry) Release() { e.handles.Add(-1) }

// BeginDrop marks the entry as draining so new Acquire calls fail; DROP
// TABLE should then poll HandleCount until it reaches zero before
// unlinking the table directory.
func (e *Entry) BeginDrop() { e.dropping.Store(true) }

// HandleCount reports the number of outstanding Acquire calls not yet
// Released.
func (e *Entry) HandleCount() int64 { return e.handles.Load() }

// Registry is the process-wide map of TableDef to Entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[schema.TableDef]*Entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[schema.TableDef]*Entry)}
}

// Get returns the entry for def, if present.
func (r *Registry) Get(def schema.TableDef) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[def]
	return e, ok
}

// Insert installs a brand-new entry for def, failing with
// toucherr.TableAlreadyExists if one is already present (the vacant-entry
// semantics CREATE TABLE relies on).
func (r *Registry) Insert(def schema.TableDef, meta *schema.TableMetadata, dir string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[def]; ok {
		return nil, toucherr.Newf(toucherr.TableAlreadyExists, "table %s already exists", def)
	}
	e := newEntry(def, meta, dir)
	r.entries[def] = e
	return e, nil
}

// InsertOrGet installs a new entry for def if absent, or returns the
// existing one — used by the startup recovery walk, where re-registering
// an already-seen table is not an error.
func (r *Registry) InsertOrGet(def schema.TableDef, meta *schema.TableMetadata, dir string) *Entry {
	r.mu.RLock()
	e, ok := r.entries[def]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[def]; ok {
		return e
	}
	e = newEntry(def, meta, dir)
	r.entries[def] = e
	return e
}

// Remove deletes def's entry. Callers must have already driven its
// handle count to zero via BeginDrop/HandleCount polling.
func (r *Registry) Remove(def schema.TableDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, def)
}

// List returns every registered table definition, for e.g. a background
// merger sweeping all tables or an admin SHOW TABLES command.
func (r *Registry) List() []schema.TableDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.TableDef, 0, len(r.entries))
	for def := range r.entries {
		out = append(out, def)
	}
	return out
}
