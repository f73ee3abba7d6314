package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/touchhouse/touchhouse/registry"
	"github.com/touchhouse/touchhouse/server"
	"github.com/touchhouse/touchhouse/wire"
)

// TestMain verifies the accept loop and its per-connection goroutines
// always unwind once cleanup cancels their context, since this package
// is the one place in touchhouse that spawns long-lived goroutines
// under direct test control.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startServer(t *testing.T) (net.Conn, func()) {
	t.Helper()
	storageDir := t.TempDir()
	reg := registry.New()
	srv := server.New(reg, storageDir, 0, log.NewNopLogger(), prometheus.NewRegistry())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx, ln)
		close(done)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	return conn, func() {
		_ = conn.Close()
		cancel()
		<-done
	}
}

func roundTrip(t *testing.T, conn net.Conn, sql string) wire.Response {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, wire.WriteRequest(conn, sql))
	resp, err := wire.ReadResponse(conn)
	require.NoError(t, err)
	return resp
}

func TestPingEchoHelp(t *testing.T) {
	conn, cleanup := startServer(t)
	defer cleanup()

	resp := roundTrip(t, conn, "PING")
	require.Equal(t, "PONG", resp.Columns[0].Values[0])

	resp = roundTrip(t, conn, "ECHO hello world")
	require.Equal(t, "hello world", resp.Columns[0].Values[0])

	resp = roundTrip(t, conn, "HELP")
	require.Contains(t, resp.Columns[0].Values[0], "Available commands")
}

func TestCreateInsertSelectEndToEnd(t *testing.T) {
	conn, cleanup := startServer(t)
	defer cleanup()

	resp := roundTrip(t, conn, "CREATE DATABASE d")
	require.Empty(t, resp.Error)

	resp = roundTrip(t, conn, "CREATE TABLE d.t (id Int64, name String) ENGINE = MergeTree() ORDER BY (id)")
	require.Empty(t, resp.Error)

	resp = roundTrip(t, conn, "INSERT INTO d.t (id, name) VALUES (2,'b'),(1,'a'),(3,'c')")
	require.Empty(t, resp.Error)

	resp = roundTrip(t, conn, "SELECT id, name FROM d.t")
	require.Empty(t, resp.Error)
	require.Len(t, resp.Columns, 2)
	require.Equal(t, []string{"1", "2", "3"}, resp.Columns[0].Values)
	require.Equal(t, []string{"a", "b", "c"}, resp.Columns[1].Values)
}

func TestSelectWithWhereAndOrderBy(t *testing.T) {
	conn, cleanup := startServer(t)
	defer cleanup()

	require.Empty(t, roundTrip(t, conn, "CREATE DATABASE d").Error)
	require.Empty(t, roundTrip(t, conn, "CREATE TABLE d.t (id Int64, name String) ENGINE = MergeTree() ORDER BY (id)").Error)
	require.Empty(t, roundTrip(t, conn, "INSERT INTO d.t (id, name) VALUES (1,'a'),(2,'b'),(3,'c')").Error)

	resp := roundTrip(t, conn, "SELECT name FROM d.t WHERE id >= 2 ORDER BY id")
	require.Empty(t, resp.Error)
	require.Equal(t, []string{"b", "c"}, resp.Columns[0].Values)
}

func TestDropTableThenSelectFails(t *testing.T) {
	conn, cleanup := startServer(t)
	defer cleanup()

	require.Empty(t, roundTrip(t, conn, "CREATE DATABASE d").Error)
	require.Empty(t, roundTrip(t, conn, "CREATE TABLE d.t (id Int64) ENGINE = MergeTree() ORDER BY (id)").Error)
	require.Empty(t, roundTrip(t, conn, "DROP TABLE d.t").Error)

	resp := roundTrip(t, conn, "SELECT id FROM d.t")
	require.NotEmpty(t, resp.Error)
}

func TestCreateTableWithoutDatabaseFails(t *testing.T) {
	conn, cleanup := startServer(t)
	defer cleanup()

	resp := roundTrip(t, conn, "CREATE TABLE missing.t (id Int64) ENGINE = MergeTree() ORDER BY (id)")
	require.NotEmpty(t, resp.Error)
}

func TestExitClosesConnectionLoop(t *testing.T) {
	conn, cleanup := startServer(t)
	defer cleanup()

	require.NoError(t, wire.WriteRequest(conn, wire.ExitCommand))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	require.Error(t, err)
}
