// Package metrics defines the prometheus instrumentation shared by the
// server and merger packages, grounded on polarsignals-arcticdb's
// table.go: promauto.With(reg).New* constructors, and
// prometheus.WrapRegistererWith to scope per-table counters under a
// "database"/"table" label pair.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Server holds the connection- and query-level counters registered
// once for the whole process.
type Server struct {
	ConnectionsTotal  prometheus.Counter
	ActiveConnections prometheus.Gauge
	QueriesTotal      *prometheus.CounterVec
	QueryDuration     *prometheus.HistogramVec
}

// NewServer registers the server-level collectors against reg. Passing
// a nil reg is not supported; callers without a real registry should
// pass prometheus.NewRegistry().
func NewServer(reg prometheus.Registerer) *Server {
	return &Server{
		ConnectionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "touchhouse_connections_total",
			Help: "Total TCP connections accepted by the server.",
		}),
		ActiveConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "touchhouse_active_connections",
			Help: "Connections currently being served.",
		}),
		QueriesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "touchhouse_queries_total",
			Help: "Total statements dispatched, by statement kind and outcome.",
		}, []string{"kind", "outcome"}),
		QueryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "touchhouse_query_duration_seconds",
			Help:    "Statement dispatch latency in seconds, by statement kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

// Table holds the per-table counters the background merger reports.
type Table struct {
	MergesTotal      prometheus.Counter
	MergeErrorsTotal prometheus.Counter
	RowsMerged       prometheus.Counter
}

// NewTable registers per-table collectors under reg, labelled the same
// way table.go labels its own per-table metrics.
func NewTable(reg prometheus.Registerer, database, table string) *Table {
	reg = prometheus.WrapRegistererWith(prometheus.Labels{"database": database, "table": table}, reg)
	return &Table{
		MergesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "touchhouse_table_merges_total",
			Help: "Successful part merges for this table.",
		}),
		MergeErrorsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "touchhouse_table_merge_errors_total",
			Help: "Merge attempts that failed for this table.",
		}),
		RowsMerged: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "touchhouse_table_merged_rows_total",
			Help: "Rows written by successful merges for this table.",
		}),
	}
}

// TableRegistry lazily creates and caches one Table per table, since
// tables are discovered at runtime (CREATE TABLE, recovery) rather than
// known up front.
type TableRegistry struct {
	reg    prometheus.Registerer
	tables map[string]*Table
}

func NewTableRegistry(reg prometheus.Registerer) *TableRegistry {
	return &TableRegistry{reg: reg, tables: make(map[string]*Table)}
}

// For returns the Table collectors for database.table, creating and
// registering them on first use. Not safe for concurrent use across
// goroutines; the background merger is single-threaded by design so a
// single caller is guaranteed.
func (r *TableRegistry) For(database, table string) *Table {
	key := database + "." + table
	if t, ok := r.tables[key]; ok {
		return t
	}
	t := NewTable(r.reg, database, table)
	r.tables[key] = t
	return t
}
