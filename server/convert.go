package server

import (
	"github.com/touchhouse/touchhouse/scan"
	"github.com/touchhouse/touchhouse/wire"
)

// wireColumns renders a scan.Result as wire.Columns, stringifying every
// value since the wire format carries no dependency on package value's
// binary encoding (see wire.Column's doc comment).
func wireColumns(result *scan.Result) []wire.Column {
	out := make([]wire.Column, len(result.Columns))
	for i, col := range result.Columns {
		values := make([]string, len(col.Data))
		for r, v := range col.Data {
			values[r] = v.String()
		}
		out[i] = wire.Column{
			Name:   col.Def.Name,
			Type:   col.Def.Type.String(),
			Values: values,
		}
	}
	return out
}
