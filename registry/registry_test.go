package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/touchhouse/touchhouse/part"
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/toucherr"
)

func testDef() schema.TableDef { return schema.TableDef{Database: "db", Table: "events"} }

func TestInsertRejectsDuplicate(t *testing.T) {
	r := New()
	def := testDef()
	_, err := r.Insert(def, &schema.TableMetadata{}, "/tmp/db/events")
	require.NoError(t, err)

	_, err = r.Insert(def, &schema.TableMetadata{}, "/tmp/db/events")
	require.Error(t, err)
	require.Equal(t, toucherr.TableAlreadyExists, toucherr.KindOf(err))
}

func TestConcurrentInsertOnlyOneWins(t *testing.T) {
	r := New()
	def := testDef()

	var wg sync.WaitGroup
	successes := make([]bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Insert(def, &schema.TableMetadata{}, "/tmp/db/events")
			successes[i] = err == nil
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestAcquireFailsDuringDrop(t *testing.T) {
	r := New()
	def := testDef()
	e, err := r.Insert(def, &schema.TableMetadata{}, "/tmp/db/events")
	require.NoError(t, err)

	require.NoError(t, e.Acquire())
	e.Release()

	e.BeginDrop()
	require.Error(t, e.Acquire())
}

func TestSnapshotLoadStoreRoundTrip(t *testing.T) {
	r := New()
	def := testDef()
	e, err := r.Insert(def, &schema.TableMetadata{}, "/tmp/db/events")
	require.NoError(t, err)
	require.Equal(t, 0, len(e.Load().Parts))

	info := &part.Info{Name: "p1"}
	e.Lock()
	e.Store(&Snapshot{Parts: []*part.Info{info}})
	e.Unlock()

	require.Equal(t, 1, len(e.Load().Parts))
	require.Equal(t, "p1", e.Load().Parts[0].Name)
}

func TestRemoveDeletesEntry(t *testing.T) {
	r := New()
	def := testDef()
	_, err := r.Insert(def, &schema.TableMetadata{}, "/tmp/db/events")
	require.NoError(t, err)

	r.Remove(def)
	_, ok := r.Get(def)
	require.False(t, ok)
}
