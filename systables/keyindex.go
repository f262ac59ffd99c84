package systables

import (
	"sync"

	"github.com/google/btree"

	"github.com/latticedb/coordinator/rangescan"
)

// btreeKey adapts a plain string key to btree.Item's ordering contract.
type btreeKey string

func (k btreeKey) Less(than btree.Item) bool { return k < than.(btreeKey) }

// KeyIndex maintains the sorted set of live keys per keyspace that a real
// CQL engine's query planner would otherwise answer from, implementing
// rangescan.KeyLister (spec.md §1's explicitly out-of-scope "what a range
// contains on disk"). It is fed externally by IndexedEngine rather than by
// inspecting storage.Engine itself, since Engine exposes no iteration
// primitive (storage/db.KVDB has none either, by design: SPEC_FULL §3.6).
type KeyIndex struct {
	mu    sync.Mutex
	trees map[string]*btree.BTree
}

func NewKeyIndex() *KeyIndex {
	return &KeyIndex{trees: make(map[string]*btree.BTree)}
}

func (idx *KeyIndex) treeFor(keyspace string) *btree.BTree {
	t, ok := idx.trees[keyspace]
	if !ok {
		t = btree.New(32)
		idx.trees[keyspace] = t
	}
	return t
}

// Track records that key currently holds a value in keyspace.
func (idx *KeyIndex) Track(keyspace, key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.treeFor(keyspace).ReplaceOrInsert(btreeKey(key))
}

// Untrack removes key from keyspace's index, used on delete.
func (idx *KeyIndex) Untrack(keyspace, key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if t, ok := idx.trees[keyspace]; ok {
		t.Delete(btreeKey(key))
	}
}

// Reset drops every tracked key for keyspace, used on truncate.
func (idx *KeyIndex) Reset(keyspace string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.trees, keyspace)
}

// KeysInRange implements rangescan.KeyLister. r.Start is exclusive, r.End
// is inclusive unless it equals rangescan.MinToken, which means "through
// the end of the ring" (spec.md §4.F step 2).
func (idx *KeyIndex) KeysInRange(keyspace string, r rangescan.Range) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	t, ok := idx.trees[keyspace]
	if !ok {
		return nil
	}

	var keys []string
	t.AscendGreaterOrEqual(btreeKey(r.Start), func(i btree.Item) bool {
		k := string(i.(btreeKey))
		if k == string(r.Start) {
			return true
		}
		if r.End != rangescan.MinToken && k > string(r.End) {
			return false
		}
		keys = append(keys, k)
		return true
	})
	return keys
}
