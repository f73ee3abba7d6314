package part

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/touchhouse/touchhouse/engine"
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/storage"
	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/value"
)

const rawDirName = "raw"

// columnFileName is the on-disk file a column's granule stream lives in.
func columnFileName(name string) string { return name + ".bin" }

// Build orders columns per the table's engine, generates the sparse mark
// index, and writes everything under <tableDir>/raw/<uuid>/ — step 1-5 of
// the insert pipeline. The caller is responsible for the final rename
// into <tableDir>/<uuid>/ under the registry's exclusive lock (Publish).
// The part is named with a freshly minted UUIDv7; use BuildNamed to force
// a specific name, as a merge must to preserve its part-name chain.
func Build(tableDir string, meta *schema.TableMetadata, columns []Column) (*Info, string, error) {
	return BuildNamed(tableDir, uuid.Must(uuid.NewV7()).String(), meta, columns)
}

// BuildNamed is Build with the part name supplied by the caller instead of
// minted fresh. A background merge uses this to make the merged part
// inherit the newer of its two source parts' names, so repeated merges of
// the same table keep extending one UUIDv7 chain rather than starting a
// new one every time.
func BuildNamed(tableDir, name string, meta *schema.TableMetadata, columns []Column) (*Info, string, error) {
	if len(columns) == 0 {
		return nil, "", toucherr.New(toucherr.NoColumnsSpecified, "insert batch has no columns")
	}

	ordered, err := engine.For(meta.Settings.Engine).OrderColumns(columns, meta.Schema.OrderBy, meta.Schema.PrimaryKey)
	if err != nil {
		return nil, "", err
	}

	rawDir := filepath.Join(tableDir, rawDirName, name)
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return nil, "", toucherr.Newf(toucherr.CouldNotInsertData, "create raw part directory: %v", err)
	}

	rowCount := len(ordered[0].Data)
	granularity := meta.Settings.IndexGranularity
	marks := generateMarks(ordered, meta.Schema.PrimaryKey, granularity, rowCount)

	colDefs := make([]schema.ColumnDef, len(ordered))
	for i, c := range ordered {
		colDefs[i] = c.Def
	}

	for i, c := range ordered {
		ranges, payload, err := encodeColumnGranules(c, granularity)
		if err != nil {
			_ = os.RemoveAll(rawDir)
			return nil, "", err
		}
		for g, r := range ranges {
			marks[g].Ranges[i] = r
		}
		path := filepath.Join(rawDir, columnFileName(c.Def.Name))
		framed := storage.Frame(storage.MagicColumnData, payload)
		if err := os.WriteFile(path, framed, 0o644); err != nil {
			_ = os.RemoveAll(rawDir)
			return nil, "", toucherr.Newf(toucherr.CouldNotInsertData, "write column file: %v", err)
		}
	}

	info := &Info{
		Name:       name,
		RowCount:   uint64(rowCount),
		ColumnDefs: colDefs,
		Marks:      marks,
	}
	infoRaw := storage.Frame(storage.MagicPartInfo, info.Encode())
	if err := os.WriteFile(filepath.Join(rawDir, infoFileName), infoRaw, 0o644); err != nil {
		_ = os.RemoveAll(rawDir)
		return nil, "", toucherr.Newf(toucherr.CouldNotInsertData, "write part info: %v", err)
	}

	return info, rawDir, nil
}

// Publish renames a raw part directory into its table's part directory.
// Callers must hold the table's registry entry lock across this call and
// the in-memory index update, rolling both back together on failure.
func Publish(rawDir, tableDir, name string) error {
	normalDir := filepath.Join(tableDir, name)
	if err := os.Rename(rawDir, normalDir); err != nil {
		return toucherr.Newf(toucherr.CouldNotInsertData, "publish part: %v", err)
	}
	return nil
}

// DiscardRaw removes a raw part directory after a failed publish.
func DiscardRaw(rawDir string) error {
	if err := os.RemoveAll(rawDir); err != nil {
		return toucherr.Newf(toucherr.CouldNotInsertData, "remove raw part directory: %v", err)
	}
	return nil
}

// generateMarks lays out one Mark per granule boundary: the primary-key
// tuple at the granule's first row (empty primary key means the whole
// part prunes to nothing, i.e. every mark carries a zero-length Index).
func generateMarks(columns []Column, primaryKey []schema.ColumnDef, granularity uint32, rowCount int) []Mark {
	if granularity == 0 {
		granularity = schema.DefaultIndexGranularity
	}
	granuleCount := (rowCount + int(granularity) - 1) / int(granularity)
	if rowCount == 0 {
		granuleCount = 1
	}
	pkIdx := make([]int, 0, len(primaryKey))
	for _, pk := range primaryKey {
		for i, c := range columns {
			if c.Def.Name == pk.Name {
				pkIdx = append(pkIdx, i)
				break
			}
		}
	}

	marks := make([]Mark, granuleCount)
	for g := 0; g < granuleCount; g++ {
		row := g * int(granularity)
		idx := make([]value.Value, len(pkIdx))
		if row < rowCount {
			for i, ci := range pkIdx {
				idx[i] = columns[ci].Data[row]
			}
		}
		marks[g] = Mark{
			Index:  idx,
			Ranges: make([]ByteRange, len(columns)),
		}
	}
	return marks
}

// encodeColumnGranules serializes and compresses column c one granule at
// a time, concatenating the compressed bytes into a single payload and
// returning the byte range each granule occupies within it. The payload
// carries no per-granule framing: Build wraps the whole thing in one
// storage.Frame, so a granule's range can be sliced and decompressed
// directly with no per-slice magic/CRC to strip.
func encodeColumnGranules(c Column, granularity uint32) ([]ByteRange, []byte, error) {
	if granularity == 0 {
		granularity = schema.DefaultIndexGranularity
	}
	rowCount := len(c.Data)
	granuleCount := (rowCount + int(granularity) - 1) / int(granularity)
	if rowCount == 0 {
		granuleCount = 1
	}

	var payload []byte
	ranges := make([]ByteRange, granuleCount)
	for g := 0; g < granuleCount; g++ {
		start := g * int(granularity)
		end := start + int(granularity)
		if end > rowCount {
			end = rowCount
		}
		raw := value.EncodeVector(c.Data[start:end])
		compressed, err := storage.Compress(raw, c.Def.Constraints.Compression)
		if err != nil {
			return nil, nil, err
		}

		rangeStart := int64(len(payload))
		payload = append(payload, compressed...)
		ranges[g] = ByteRange{Start: rangeStart, End: int64(len(payload))}
	}
	return ranges, payload, nil
}
