package part

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/storage"
	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/value"
)

// Reader holds one published part's memory-mapped column files open for
// the lifetime of a scan. Opening mmaps every column once and validates
// its single whole-file magic+CRC32 frame; granule reads after that slice
// straight into the validated payload with no further framing or syscall.
type Reader struct {
	Info *Info
	dir  string

	mu      sync.Mutex
	mapped  map[string]mmap.MMap
	file    map[string]*os.File
	payload map[string][]byte
}

// Open mmaps every column file named in info, validates its frame once,
// and returns a Reader. Call Close when the scan touching this part is
// done.
func Open(dir string, info *Info) (*Reader, error) {
	r := &Reader{
		Info:    info,
		dir:     dir,
		mapped:  make(map[string]mmap.MMap, len(info.ColumnDefs)),
		file:    make(map[string]*os.File, len(info.ColumnDefs)),
		payload: make(map[string][]byte, len(info.ColumnDefs)),
	}
	for _, c := range info.ColumnDefs {
		path := filepath.Join(dir, columnFileName(c.Name))
		f, err := os.Open(path)
		if err != nil {
			r.Close()
			return nil, toucherr.Newf(toucherr.CouldNotReadData, "open column file %s: %v", path, err)
		}
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			r.Close()
			return nil, toucherr.Newf(toucherr.CouldNotReadData, "mmap column file %s: %v", path, err)
		}
		payload, err := storage.Unframe(storage.MagicColumnData, m)
		if err != nil {
			r.file[c.Name] = f
			r.mapped[c.Name] = m
			r.Close()
			return nil, toucherr.Newf(toucherr.CouldNotReadData, "validate column file %s: %v", path, err)
		}
		r.file[c.Name] = f
		r.mapped[c.Name] = m
		r.payload[c.Name] = payload
	}
	return r, nil
}

// Close unmaps and closes every column file.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for name, m := range r.mapped {
		if err := m.Unmap(); err != nil && first == nil {
			first = err
		}
		delete(r.mapped, name)
	}
	for name, f := range r.file {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.file, name)
	}
	for name := range r.payload {
		delete(r.payload, name)
	}
	if first != nil {
		return toucherr.Newf(toucherr.Internal, "close part reader: %v", first)
	}
	return nil
}

// Granule decodes granule g of column columnName into archived values,
// slicing its compressed bytes directly out of the column file's payload
// (already validated once, in Open) and decompressing per the column's
// declared compression.
func (r *Reader) Granule(columnName string, g int, comp storage.Compression) ([]value.Archived, error) {
	colIdx := r.Info.ColumnIndex(columnName)
	if colIdx < 0 {
		return nil, toucherr.Newf(toucherr.ColumnNotFound, "column %q not present in part %s", columnName, r.Info.Name)
	}
	if g < 0 || g >= len(r.Info.Marks) {
		return nil, toucherr.Newf(toucherr.Internal, "granule index %d out of range", g)
	}
	rng := r.Info.Marks[g].Ranges[colIdx]

	r.mu.Lock()
	payload, ok := r.payload[columnName]
	r.mu.Unlock()
	if !ok {
		return nil, toucherr.Newf(toucherr.Internal, "column %q not mapped", columnName)
	}
	if rng.End > int64(len(payload)) || rng.Start < 0 || rng.Start > rng.End {
		return nil, toucherr.Newf(toucherr.CouldNotReadData, "granule byte range out of bounds for column %q", columnName)
	}

	compressed := payload[rng.Start:rng.End]
	raw, err := storage.Decompress(compressed, comp)
	if err != nil {
		return nil, err
	}
	return value.DecodeArchivedVector(raw)
}

// MarkIndex returns the primary-key tuple recorded at the start of
// granule g (the sparse index entry read during pruning).
func (r *Reader) MarkIndex(g int) []value.Value {
	return r.Info.Marks[g].Index
}

// GranuleCount reports how many granules this part is split into.
func (r *Reader) GranuleCount() int { return len(r.Info.Marks) }

// RowCount is the total number of rows, across all granules, in this part.
func (r *Reader) RowCount() uint64 { return r.Info.RowCount }

// GranuleRowCount is a convenience forwarding to Info.GranuleRowCount
// using the granularity declared on the owning table.
func (r *Reader) GranuleRowCount(g int, granularity uint32) int {
	return r.Info.GranuleRowCount(g, granularity)
}

// LoadInfo reads and decodes a part's part.inf sidecar from dir.
func LoadInfo(dir string) (*Info, error) {
	path := filepath.Join(dir, infoFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, toucherr.Newf(toucherr.CouldNotReadData, "read part info %s: %v", path, err)
	}
	return ReadInfo(raw)
}

// ColumnCompression looks up the declared compression for a column by
// name against the owning table's full schema (a part's own ColumnDefs
// carry no compression setting, only name and type).
func ColumnCompression(tableSchema *schema.TableSchema, name string) storage.Compression {
	if c, ok := tableSchema.Column(name); ok {
		return c.Constraints.Compression
	}
	return storage.DefaultCompression
}
