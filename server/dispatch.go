package server

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/touchhouse/touchhouse/part"
	"github.com/touchhouse/touchhouse/registry"
	"github.com/touchhouse/touchhouse/scan"
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/sqlfront"
	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/wire"
)

// dropPollInterval is how often BeginDrop's caller re-checks a draining
// entry's handle count while waiting for in-flight scans to finish
// (Open Question 3, see DESIGN.md).
const dropPollInterval = 5 * time.Millisecond

// execute dispatches one SQL statement: admin commands are intercepted
// by the caller before this is reached, so everything here goes through
// sqlfront.Parse. It returns the statement kind alongside the response
// so the caller can label its query metrics.
func (s *Server) execute(ctx context.Context, sql string) (string, wire.Response) {
	stmt, err := sqlfront.Parse(sql, registryLookup{s.reg})
	if err != nil {
		return "unknown", wire.ErrorResponse(err)
	}
	kind := stmt.Kind.String()

	switch stmt.Kind {
	case sqlfront.StmtCreateDatabase:
		err = s.createDatabase(stmt.Database)
	case sqlfront.StmtDropDatabase:
		err = s.dropDatabase(ctx, stmt.Database)
	case sqlfront.StmtCreateTable:
		err = s.createTable(stmt)
	case sqlfront.StmtDropTable:
		err = s.dropTable(ctx, stmt.Table)
	case sqlfront.StmtInsert:
		err = s.insert(stmt)
	case sqlfront.StmtSelect:
		var result *scan.Result
		result, err = s.selectRows(ctx, stmt)
		if err == nil {
			return kind, wire.Response{Columns: wireColumns(result)}
		}
	default:
		err = toucherr.Newf(toucherr.UnsupportedCommand, "unsupported statement kind %v", stmt.Kind)
	}

	if err != nil {
		return kind, wire.ErrorResponse(err)
	}
	return kind, wire.OK()
}

func (s *Server) databaseDir(name string) string { return filepath.Join(s.storageDir, name) }

func (s *Server) tableDir(def schema.TableDef) string {
	return filepath.Join(s.storageDir, def.Database, def.Table)
}

func (s *Server) createDatabase(name string) error {
	dir := s.databaseDir(name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return toucherr.Newf(toucherr.DatabaseAlreadyExists, "database %q already exists", name)
		}
		return toucherr.Newf(toucherr.CouldNotCreateTable, "create database %q: %v", name, err)
	}
	return nil
}

func (s *Server) dropDatabase(ctx context.Context, name string) error {
	dir := s.databaseDir(name)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return toucherr.Newf(toucherr.DatabaseNotFound, "database %q not found", name)
		}
		return err
	}

	for _, def := range s.reg.List() {
		if def.Database != name {
			continue
		}
		if err := s.dropTable(ctx, def); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return toucherr.Newf(toucherr.Internal, "remove database %q: %v", name, err)
	}
	return nil
}

func (s *Server) createTable(stmt *sqlfront.Statement) error {
	if _, err := os.Stat(s.databaseDir(stmt.Table.Database)); err != nil {
		if os.IsNotExist(err) {
			return toucherr.Newf(toucherr.DatabaseNotFound, "database %q not found", stmt.Table.Database)
		}
		return err
	}

	dir := s.tableDir(stmt.Table)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return toucherr.Newf(toucherr.CouldNotCreateTable, "create table directory: %v", err)
	}

	meta, err := schema.NewMetadata(stmt.Schema, stmt.Settings, time.Now().UnixMilli())
	if err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	if err := meta.WriteTo(dir); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}

	if _, err := s.reg.Insert(stmt.Table, meta, dir); err != nil {
		return err
	}
	return nil
}

func (s *Server) dropTable(ctx context.Context, def schema.TableDef) error {
	entry, ok := s.reg.Get(def)
	if !ok {
		return toucherr.Newf(toucherr.TableNotFound, "table %s not found", def)
	}

	entry.BeginDrop()
	for entry.HandleCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dropPollInterval):
		}
	}

	s.reg.Remove(def)
	if err := os.RemoveAll(entry.Dir); err != nil {
		return toucherr.Newf(toucherr.Internal, "remove table directory: %v", err)
	}
	return nil
}

func (s *Server) insert(stmt *sqlfront.Statement) error {
	entry, ok := s.reg.Get(stmt.Table)
	if !ok {
		return toucherr.Newf(toucherr.TableNotFound, "table %s not found", stmt.Table)
	}
	if err := entry.Acquire(); err != nil {
		return err
	}
	defer entry.Release()

	columns, err := sqlfront.ColumnsToParts(stmt, &entry.Meta.Schema)
	if err != nil {
		return err
	}

	info, rawDir, err := part.Build(entry.Dir, entry.Meta, columns)
	if err != nil {
		return err
	}

	entry.Lock()
	defer entry.Unlock()

	if err := part.Publish(rawDir, entry.Dir, info.Name); err != nil {
		_ = part.DiscardRaw(rawDir)
		return err
	}

	snapshot := entry.Load()
	parts := make([]*part.Info, 0, len(snapshot.Parts)+1)
	parts = append(parts, snapshot.Parts...)
	parts = append(parts, info)
	entry.Store(&registry.Snapshot{Parts: parts})
	return nil
}

func (s *Server) selectRows(ctx context.Context, stmt *sqlfront.Statement) (*scan.Result, error) {
	entry, ok := s.reg.Get(stmt.Table)
	if !ok {
		return nil, toucherr.Newf(toucherr.TableNotFound, "table %s not found", stmt.Table)
	}
	if err := entry.Acquire(); err != nil {
		return nil, err
	}
	defer entry.Release()

	plan := scan.Plan{
		Columns: stmt.Select.Columns,
		Filter:  stmt.Select.Filter,
		SortBy:  stmt.Select.SortBy,
		Limit:   stmt.Select.Limit,
		Offset:  stmt.Select.Offset,
	}
	return scan.Execute(ctx, entry, plan)
}
