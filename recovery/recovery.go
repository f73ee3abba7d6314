// Package recovery implements the startup walk of spec.md §4.8: discover
// every table under the storage directory, install it into the
// registry, and clean up whatever an interrupted insert or merge left
// behind. Grounded on polarsignals-arcticdb's db.go double-checked
// registration pattern (Table/DB) and on part.Publish/DiscardRaw's
// raw/.old directory conventions.
package recovery

import (
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/touchhouse/touchhouse/part"
	"github.com/touchhouse/touchhouse/registry"
	"github.com/touchhouse/touchhouse/schema"
)

const (
	rawDirName = "raw"
	oldSuffix  = ".old"
)

// Run walks storageDir/<database>/<table> and installs every table it
// finds into reg. It never fails outright on a single bad table or part:
// unreadable parts are skipped and logged, since one corrupt part must
// not prevent the rest of the database from coming up.
func Run(storageDir string, reg *registry.Registry, logger log.Logger) error {
	databases, err := os.ReadDir(storageDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, dbEntry := range databases {
		if !dbEntry.IsDir() {
			continue
		}
		dbDir := filepath.Join(storageDir, dbEntry.Name())
		tables, err := os.ReadDir(dbDir)
		if err != nil {
			level.Warn(logger).Log("msg", "could not list database directory", "database", dbEntry.Name(), "err", err)
			continue
		}
		for _, tableEntry := range tables {
			if !tableEntry.IsDir() {
				continue
			}
			tableDir := filepath.Join(dbDir, tableEntry.Name())
			def := schema.TableDef{Database: dbEntry.Name(), Table: tableEntry.Name()}
			if err := recoverTable(def, tableDir, reg, logger); err != nil {
				level.Warn(logger).Log("msg", "skipping table during recovery", "table", def.String(), "err", err)
			}
		}
	}
	return nil
}

func recoverTable(def schema.TableDef, tableDir string, reg *registry.Registry, logger log.Logger) error {
	meta, err := schema.ReadMetadata(tableDir)
	if err != nil {
		return err
	}

	entry := reg.InsertOrGet(def, meta, tableDir)

	if err := os.RemoveAll(filepath.Join(tableDir, rawDirName)); err != nil && !os.IsNotExist(err) {
		level.Warn(logger).Log("msg", "could not purge stale raw directory", "table", def.String(), "err", err)
	}

	children, err := os.ReadDir(tableDir)
	if err != nil {
		return err
	}

	var parts []*part.Info
	for _, child := range children {
		name := child.Name()
		if !child.IsDir() {
			continue
		}
		if filepath.Ext(name) == oldSuffix {
			level.Warn(logger).Log("msg", "leftover merge swap directory found, skipping", "table", def.String(), "dir", name)
			continue
		}

		info, err := part.LoadInfo(filepath.Join(tableDir, name))
		if err != nil {
			level.Warn(logger).Log("msg", "could not load part, skipping", "table", def.String(), "part", name, "err", err)
			continue
		}
		parts = append(parts, info)
	}

	entry.Lock()
	entry.Store(&registry.Snapshot{Parts: parts})
	entry.Unlock()
	return nil
}
