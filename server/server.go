// Package server wires the TCP accept loop, the SQL front end, and the
// storage engine together: one connection per goroutine, bounded by a
// semaphore sized to the configured connection limit, dispatching every
// request through sqlfront/registry/part/engine/scan.
//
// Grounded on spec.md §5's connection-layer paragraph; the admin
// command set (PING/ECHO/HELP) is carried forward from
// original_source/src/commands/{ping,echo,help}.rs per SPEC_FULL.md §6.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/touchhouse/touchhouse/metrics"
	"github.com/touchhouse/touchhouse/registry"
	"github.com/touchhouse/touchhouse/wire"
)

// Server owns the registry and storage root it dispatches SQL against,
// plus the semaphore bounding concurrent connections.
type Server struct {
	reg        *registry.Registry
	storageDir string
	logger     log.Logger
	conns      *semaphore.Weighted
	metrics    *metrics.Server
}

// New constructs a Server. maxConnections <= 0 is treated as unbounded.
// promReg receives the connection/query counters defined in package
// metrics.
func New(reg *registry.Registry, storageDir string, maxConnections int, logger log.Logger, promReg prometheus.Registerer) *Server {
	if maxConnections <= 0 {
		maxConnections = 1 << 30
	}
	return &Server{
		reg:        reg,
		storageDir: storageDir,
		logger:     logger,
		conns:      semaphore.NewWeighted(int64(maxConnections)),
		metrics:    metrics.NewServer(promReg),
	}
}

// Serve accepts connections from ln until ctx is cancelled or Accept
// fails, handling each on its own goroutine.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := s.conns.Acquire(ctx, 1); err != nil {
			_ = conn.Close()
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		s.metrics.ConnectionsTotal.Inc()
		s.metrics.ActiveConnections.Inc()
		go func() {
			defer s.conns.Release(1)
			defer s.metrics.ActiveConnections.Dec()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	level.Info(s.logger).Log("msg", "connection accepted", "remote", remote)

	for {
		sql, err := wire.ReadRequest(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				level.Warn(s.logger).Log("msg", "read request failed", "remote", remote, "err", err)
			}
			return
		}

		if sql == wire.ExitCommand {
			level.Info(s.logger).Log("msg", "connection closed by client", "remote", remote)
			return
		}

		resp := s.dispatch(ctx, sql)
		if err := wire.WriteResponse(conn, resp); err != nil {
			level.Warn(s.logger).Log("msg", "write response failed", "remote", remote, "err", err)
			return
		}
	}
}

// dispatch recognizes the admin commands carried forward from the
// original before handing everything else to the SQL front end.
func (s *Server) dispatch(ctx context.Context, sql string) wire.Response {
	if text, ok := dispatchAdmin(sql); ok {
		return wire.Response{Columns: []wire.Column{{Name: "result", Type: "String", Values: []string{text}}}}
	}

	start := time.Now()
	kind, resp := s.execute(ctx, sql)
	outcome := "ok"
	if resp.Error != "" {
		outcome = "error"
	}
	s.metrics.QueriesTotal.WithLabelValues(kind, outcome).Inc()
	s.metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	return resp
}
