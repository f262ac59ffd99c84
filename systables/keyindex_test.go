package systables

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticedb/coordinator/rangescan"
	"github.com/latticedb/coordinator/storage/local"
)

func TestKeyIndexKeysInRangeExcludesStartIncludesEnd(t *testing.T) {
	idx := NewKeyIndex()
	for _, k := range []string{"a", "b", "c", "d"} {
		idx.Track("ks", k)
	}

	got := idx.KeysInRange("ks", rangescan.Range{Start: "a", End: "c"})
	require.Equal(t, []string{"b", "c"}, got)
}

func TestKeyIndexKeysInRangeMinTokenEndRunsToEnd(t *testing.T) {
	idx := NewKeyIndex()
	for _, k := range []string{"a", "b", "c"} {
		idx.Track("ks", k)
	}

	got := idx.KeysInRange("ks", rangescan.Range{Start: "a", End: rangescan.MinToken})
	require.Equal(t, []string{"b", "c"}, got)
}

func TestKeyIndexUntrackAndReset(t *testing.T) {
	idx := NewKeyIndex()
	idx.Track("ks", "a")
	idx.Track("ks", "b")
	idx.Untrack("ks", "a")
	require.Equal(t, []string{"b"}, idx.KeysInRange("ks", rangescan.Range{Start: "", End: rangescan.MinToken}))

	idx.Reset("ks")
	require.Empty(t, idx.KeysInRange("ks", rangescan.Range{Start: "", End: rangescan.MinToken}))
}

func TestIndexedEngineTracksWritesAndDeletes(t *testing.T) {
	idx := NewKeyIndex()
	engine := NewIndexedEngine(local.NewLocalEngine(newMapleFactory()), "ks", idx)

	require.NoError(t, engine.Apply("k1", []byte("v1"), 1, 0, 0))
	require.NoError(t, engine.ApplyIfAbsent("k2", []byte("v2"), 2, 0, 0))
	require.ElementsMatch(t, []string{"k1", "k2"}, idx.KeysInRange("ks", rangescan.Range{Start: "", End: rangescan.MinToken}))

	require.NoError(t, engine.Delete("k1", 3))
	require.Equal(t, []string{"k2"}, idx.KeysInRange("ks", rangescan.Range{Start: "", End: rangescan.MinToken}))

	require.NoError(t, engine.Truncate())
	require.Empty(t, idx.KeysInRange("ks", rangescan.Range{Start: "", End: rangescan.MinToken}))
}
