// Package merger runs the single background worker that keeps the
// number of parts per table bounded: it repeatedly picks the two oldest
// parts of some table and replaces them with one merged part.
//
// Grounded on original_source/src/background_merge.rs's BackgroundMerge
// loop: find_two_parts, load+concat, two-phase rename-to-.old with
// rollback, publish, then best-effort cleanup of the .old directories.
package merger

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/touchhouse/touchhouse/metrics"
	"github.com/touchhouse/touchhouse/part"
	"github.com/touchhouse/touchhouse/registry"
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/value"
)

// Merger owns the registry it scans and the interval it polls at when
// no table currently has a mergeable pair of parts.
type Merger struct {
	reg          *registry.Registry
	logger       log.Logger
	idleInterval time.Duration
	metrics      *metrics.TableRegistry
}

// New constructs a Merger. idleInterval is how long to sleep between
// sweeps of the registry when no table had two or more parts to merge
// (background_merge.rs sleeps a flat one second in the same situation).
// promReg receives the per-table merge counters defined in package
// metrics, the same way table.go registers its own per-table counters.
func New(reg *registry.Registry, logger log.Logger, idleInterval time.Duration, promReg prometheus.Registerer) *Merger {
	if idleInterval <= 0 {
		idleInterval = time.Second
	}
	return &Merger{reg: reg, logger: logger, idleInterval: idleInterval, metrics: metrics.NewTableRegistry(promReg)}
}

// Run drives the merge loop until ctx is cancelled. Intended to run on
// its own dedicated goroutine for the lifetime of the process.
func (m *Merger) Run(ctx context.Context) {
	level.Info(m.logger).Log("msg", "background merge started")
	for {
		select {
		case <-ctx.Done():
			level.Info(m.logger).Log("msg", "background merge stopped")
			return
		default:
		}

		merged, err := m.mergeOnce(ctx)
		if err != nil {
			level.Warn(m.logger).Log("msg", "merge attempt failed", "err", err)
		}
		if !merged {
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.idleInterval):
			}
		}
	}
}

// mergeOnce attempts a single merge across the whole registry, returning
// whether it found and merged a pair of parts.
func (m *Merger) mergeOnce(ctx context.Context) (bool, error) {
	def, older, newer, ok := m.findTwoParts()
	if !ok {
		return false, nil
	}

	entry, ok := m.reg.Get(def)
	if !ok {
		return false, nil
	}

	tableMetrics := m.metrics.For(def.Database, def.Table)

	olderCols, err := loadPart(entry.Dir, older, &entry.Meta.Schema)
	if err != nil {
		tableMetrics.MergeErrorsTotal.Inc()
		return false, fmt.Errorf("load part %s: %w", older.Name, err)
	}
	newerCols, err := loadPart(entry.Dir, newer, &entry.Meta.Schema)
	if err != nil {
		tableMetrics.MergeErrorsTotal.Inc()
		return false, fmt.Errorf("load part %s: %w", newer.Name, err)
	}
	mergedCols := mergeColumns(olderCols, newerCols)

	// The merged part inherits newer's name so later merges of this table
	// keep extending the same UUIDv7 chain instead of minting a fresh one.
	newInfo, rawDir, err := part.BuildNamed(entry.Dir, newer.Name, entry.Meta, mergedCols)
	if err != nil {
		tableMetrics.MergeErrorsTotal.Inc()
		return false, fmt.Errorf("build merged part: %w", err)
	}

	if err := m.swap(entry, older, newer, newInfo, rawDir); err != nil {
		tableMetrics.MergeErrorsTotal.Inc()
		return false, err
	}
	tableMetrics.MergesTotal.Inc()
	tableMetrics.RowsMerged.Add(float64(newInfo.RowCount))
	level.Info(m.logger).Log("msg", "merged parts", "table", def.String(), "rows", humanize.Comma(int64(newInfo.RowCount)))
	return true, nil
}

// swap performs the two-phase rename documented in background_merge.rs:
// rename both source parts to `.old` (rolling back if the second rename
// fails), publish the freshly-built part, install the updated registry
// snapshot, and only then remove the `.old` directories.
func (m *Merger) swap(entry *registry.Entry, older, newer *part.Info, newInfo *part.Info, rawDir string) error {
	entry.Lock()
	defer entry.Unlock()

	olderDir := filepath.Join(entry.Dir, older.Name)
	olderOld := olderDir + ".old"
	newerDir := filepath.Join(entry.Dir, newer.Name)
	newerOld := newerDir + ".old"

	if err := os.Rename(olderDir, olderOld); err != nil {
		_ = part.DiscardRaw(rawDir)
		return fmt.Errorf("rename %s to .old: %w", olderDir, err)
	}
	if err := os.Rename(newerDir, newerOld); err != nil {
		if rbErr := os.Rename(olderOld, olderDir); rbErr != nil {
			entry.Poison()
			level.Error(m.logger).Log("msg", "could not roll back .old rename, table poisoned", "dir", olderOld, "err", rbErr)
		}
		_ = part.DiscardRaw(rawDir)
		return fmt.Errorf("rename %s to .old: %w", newerDir, err)
	}

	snapshot := entry.Load()
	remaining := make([]*part.Info, 0, len(snapshot.Parts))
	for _, p := range snapshot.Parts {
		if p.Name != older.Name && p.Name != newer.Name {
			remaining = append(remaining, p)
		}
	}

	if err := part.Publish(rawDir, entry.Dir, newInfo.Name); err != nil {
		// Roll back both .old renames and leave the old parts in place.
		if rbErr := os.Rename(olderOld, olderDir); rbErr != nil {
			entry.Poison()
			level.Error(m.logger).Log("msg", "could not roll back .old rename, table poisoned", "dir", olderOld, "err", rbErr)
			return err
		}
		if rbErr := os.Rename(newerOld, newerDir); rbErr != nil {
			entry.Poison()
			level.Error(m.logger).Log("msg", "could not roll back .old rename, table poisoned", "dir", newerOld, "err", rbErr)
			return err
		}
		_ = part.DiscardRaw(rawDir)
		return fmt.Errorf("publish merged part: %w", err)
	}

	remaining = append(remaining, newInfo)
	entry.Store(&registry.Snapshot{Parts: remaining})

	if err := os.RemoveAll(olderOld); err != nil {
		level.Warn(m.logger).Log("msg", "could not remove stale part directory, remove manually", "dir", olderOld, "err", err)
	}
	if err := os.RemoveAll(newerOld); err != nil {
		level.Warn(m.logger).Log("msg", "could not remove stale part directory, remove manually", "dir", newerOld, "err", err)
	}
	return nil
}

// findTwoParts scans every registered table for one with two or more
// parts and returns its two oldest (by uuidTimeCompare).
func (m *Merger) findTwoParts() (schema.TableDef, *part.Info, *part.Info, bool) {
	for _, def := range m.reg.List() {
		entry, ok := m.reg.Get(def)
		if !ok {
			continue
		}
		snapshot := entry.Load()
		if len(snapshot.Parts) < 2 {
			continue
		}
		ordered := make([]*part.Info, len(snapshot.Parts))
		copy(ordered, snapshot.Parts)
		sort.Slice(ordered, func(i, j int) bool {
			return uuidTimeCompare(ordered[i].Name, ordered[j].Name) < 0
		})
		return def, ordered[0], ordered[1], true
	}
	return schema.TableDef{}, nil, nil, false
}

// uuidTimeCompare orders two UUIDv7 strings by the embedded 48-bit
// millisecond timestamp (RFC 9562: the UUID's first 6 bytes, big-endian,
// regardless of version — read directly rather than through uuid.Time,
// which decodes the version-1 time-low/time-mid/time-hi layout, not
// version 7's plain leading timestamp), falling back to lexicographic
// order if either fails to parse (so a malformed or foreign-format name
// never panics the merger).
func uuidTimeCompare(a, b string) int {
	if a == b {
		return 0
	}
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	if errA != nil || errB != nil {
		if a < b {
			return -1
		}
		return 1
	}
	ta, tb := uuidV7Millis(ua), uuidV7Millis(ub)
	if ta != tb {
		if ta < tb {
			return -1
		}
		return 1
	}
	if a < b {
		return -1
	}
	return 1
}

// uuidV7Millis extracts the leading 48-bit big-endian millisecond
// timestamp a UUIDv7 carries in its first 6 bytes.
func uuidV7Millis(id uuid.UUID) uint64 {
	var buf [8]byte
	copy(buf[2:], id[:6])
	return binary.BigEndian.Uint64(buf[:])
}

// loadPart decodes every granule of every column in info into one fully
// materialized schema.Column per column, for use as merge input (the
// merger operates on whole parts, not the scan engine's granule-lazy
// path).
func loadPart(dir string, info *part.Info, tableSchema *schema.TableSchema) ([]schema.Column, error) {
	reader, err := part.Open(filepath.Join(dir, info.Name), info)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	columns := make([]schema.Column, len(info.ColumnDefs))
	for i, def := range info.ColumnDefs {
		comp := part.ColumnCompression(tableSchema, def.Name)
		data := make([]value.Value, 0, info.RowCount)
		for g := 0; g < reader.GranuleCount(); g++ {
			archived, err := reader.Granule(def.Name, g, comp)
			if err != nil {
				return nil, err
			}
			for _, a := range archived {
				data = append(data, a.Materialize())
			}
		}
		columns[i] = schema.Column{Def: def, Data: data}
	}
	return columns, nil
}

// mergeColumns concatenates part_0's columns with part_1's, null-padding
// any column one part carries but the other doesn't — the same
// accommodation background_merge.rs's merge_parts makes for a table
// whose schema grew a column between the two parts being merged.
func mergeColumns(a, b []schema.Column) []schema.Column {
	result := make([]schema.Column, len(a))
	copy(result, a)

	aLen := 0
	if len(a) > 0 {
		aLen = len(a[0].Data)
	}

	for _, bc := range b {
		found := false
		for i := range result {
			if result[i].Def.Name == bc.Def.Name {
				result[i].Data = append(append([]value.Value{}, result[i].Data...), bc.Data...)
				found = true
				break
			}
		}
		if !found {
			data := make([]value.Value, aLen, aLen+len(bc.Data))
			for i := range data {
				data[i] = value.Null()
			}
			data = append(data, bc.Data...)
			result = append(result, schema.Column{Def: bc.Def, Data: data})
		}
	}
	return result
}
