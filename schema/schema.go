// Package schema defines the structural metadata of a table: its columns,
// ordering, and the settings that govern part layout and merge policy.
package schema

import (
	"github.com/touchhouse/touchhouse/storage"
	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/value"
)

// Constraints attached to one column.
type Constraints struct {
	Nullable    bool
	Default     *value.Value
	Compression storage.Compression
}

// ColumnDef describes one column of a table.
type ColumnDef struct {
	Name        string
	Type        value.Type
	Constraints Constraints
}

// Column is one named column's full in-memory data, row-aligned with its
// siblings in the same batch or part.
type Column struct {
	Def  ColumnDef
	Data []value.Value
}

// EngineName selects the merge policy a table uses; see package engine.
type EngineName uint8

const (
	EngineMergeTree EngineName = iota
	EngineReplacingMergeTree
)

func (e EngineName) String() string {
	if e == EngineReplacingMergeTree {
		return "ReplacingMergeTree"
	}
	return "MergeTree"
}

func ParseEngineName(s string) (EngineName, error) {
	switch s {
	case "MergeTree":
		return EngineMergeTree, nil
	case "ReplacingMergeTree":
		return EngineReplacingMergeTree, nil
	default:
		return 0, toucherr.Newf(toucherr.UnsupportedTableOption, "unknown engine %q", s)
	}
}

// TableSettings governs granule sizing and merge policy.
type TableSettings struct {
	IndexGranularity uint32
	Engine           EngineName
}

// DefaultIndexGranularity matches the spec's default of 8192 rows/granule.
const DefaultIndexGranularity = 8192

// TableSchema is the ordered column list plus the ORDER BY / PRIMARY KEY
// declarations that govern sort, mark generation, pruning, and (for
// ReplacingMergeTree) dedup.
type TableSchema struct {
	Columns     []ColumnDef
	OrderBy     []ColumnDef
	PrimaryKey  []ColumnDef
}

// Validate enforces the schema invariant: PrimaryKey is a prefix of
// OrderBy, and both reference columns that exist.
func (s *TableSchema) Validate() error {
	if len(s.Columns) == 0 {
		return toucherr.New(toucherr.NoColumnsSpecified, "table must have at least one column")
	}
	seen := map[string]bool{}
	byName := map[string]ColumnDef{}
	for _, c := range s.Columns {
		if seen[c.Name] {
			return toucherr.Newf(toucherr.DuplicateColumn, "column %q declared twice", c.Name)
		}
		seen[c.Name] = true
		byName[c.Name] = c
	}
	if len(s.OrderBy) == 0 {
		return toucherr.New(toucherr.InvalidOrderBy, "ORDER BY must be non-empty")
	}
	for _, c := range s.OrderBy {
		if _, ok := byName[c.Name]; !ok {
			return toucherr.Newf(toucherr.InvalidOrderBy, "ORDER BY column %q not in schema", c.Name)
		}
	}
	if len(s.PrimaryKey) > len(s.OrderBy) {
		return toucherr.New(toucherr.InvalidOrderByPrimaryKeyPair, "PRIMARY KEY longer than ORDER BY")
	}
	for i, c := range s.PrimaryKey {
		if s.OrderBy[i].Name != c.Name {
			return toucherr.New(toucherr.InvalidOrderByPrimaryKeyPair, "PRIMARY KEY must be a prefix of ORDER BY")
		}
	}
	return nil
}

// ColumnIndex returns the position of name in Columns, or -1.
func (s *TableSchema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s *TableSchema) Column(name string) (ColumnDef, bool) {
	idx := s.ColumnIndex(name)
	if idx < 0 {
		return ColumnDef{}, false
	}
	return s.Columns[idx], true
}

// TableMetadata is the immutable, once-written description of a table,
// framed and persisted as the `.metadata` file.
type TableMetadata struct {
	Version   uint16
	Flags     uint32
	CreatedAt int64 // unix milliseconds
	Settings  TableSettings
	Schema    TableSchema
}

const metadataVersion = 1

// NewMetadata builds a fresh TableMetadata stamped with nowUnixMs as its
// creation time.
func NewMetadata(schema TableSchema, settings TableSettings, nowUnixMs int64) (*TableMetadata, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if settings.IndexGranularity == 0 {
		settings.IndexGranularity = DefaultIndexGranularity
	}
	return &TableMetadata{
		Version:   metadataVersion,
		Flags:     0,
		CreatedAt: nowUnixMs,
		Settings:  settings,
		Schema:    schema,
	}, nil
}

// TableDef identifies a table both on disk and as a registry key.
type TableDef struct {
	Database string
	Table    string
}

func (d TableDef) String() string { return d.Database + "." + d.Table }
