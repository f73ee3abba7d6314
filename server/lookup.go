package server

import (
	"github.com/touchhouse/touchhouse/registry"
	"github.com/touchhouse/touchhouse/schema"
)

// registryLookup adapts package registry to sqlfront.TableLookup, the
// only surface sqlfront is allowed to depend on (it never imports
// registry directly).
type registryLookup struct {
	reg *registry.Registry
}

func (l registryLookup) Schema(def schema.TableDef) (*schema.TableSchema, bool) {
	entry, ok := l.reg.Get(def)
	if !ok {
		return nil, false
	}
	return &entry.Meta.Schema, true
}
