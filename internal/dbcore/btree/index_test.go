package btree

import (
	"testing"
	"time"

	"cairndb/internal/dbcore/buffer"
	"cairndb/internal/dbcore/config"
	"cairndb/internal/dbcore/file"
	"cairndb/internal/dbcore/log"
	"cairndb/internal/dbcore/tx"
	"cairndb/internal/dbcore/types"
)

func newTestTx(t *testing.T, numBuff int) *tx.Transaction {
	t.Helper()
	dir := t.TempDir()

	fm, err := file.NewFileManager(dir, 400)
	if err != nil {
		t.Fatalf("NewFileManager: %v", err)
	}
	lm, err := log.NewLogManager(fm, "testlog")
	if err != nil {
		t.Fatalf("NewLogManager: %v", err)
	}
	pool := buffer.NewPool(fm, lm, numBuff)
	lt := tx.NewLockTable()
	cfg := config.BufferMgrConfig{PoolSize: numBuff, MaxTime: 2 * time.Second, Epsilon: 10 * time.Millisecond}
	return tx.NewTransaction(fm, lm, pool, lt, cfg)
}

func newIntIndex(t *testing.T, txn *tx.Transaction, name string) *Index {
	t.Helper()
	idx, err := NewIndex(txn, name, types.Integer, 0)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return idx
}

func newStringIndex(t *testing.T, txn *tx.Transaction, name string) *Index {
	t.Helper()
	idx, err := NewIndex(txn, name, types.Varchar, 20)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return idx
}

func findOne(t *testing.T, idx *Index, key types.Constant) (types.RID, bool) {
	t.Helper()
	if err := idx.BeforeFirst(types.NewConstantPoint(key)); err != nil {
		t.Fatalf("BeforeFirst: %v", err)
	}
	ok, err := idx.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		return types.RID{}, false
	}
	return idx.DataRID(), true
}

func TestIndexEmptySearchFindsNothing(t *testing.T) {
	txn := newTestTx(t, 8)
	idx := newIntIndex(t, txn, "emptytest")
	defer idx.Close()

	if _, found := findOne(t, idx, types.NewConstantInt(42)); found {
		t.Errorf("expected no match in an empty index")
	}
}

func TestIndexBasicInsertAndSearch(t *testing.T) {
	txn := newTestTx(t, 8)
	idx := newIntIndex(t, txn, "basictest")
	defer idx.Close()

	key := types.NewConstantInt(42)
	rid := types.NewRID(file.NewBlockID("data.tbl", 1), 1)
	if err := idx.Insert(key, rid); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, found := findOne(t, idx, key)
	if !found {
		t.Fatalf("expected to find the inserted record")
	}
	if !got.Equals(rid) {
		t.Errorf("got rid %v, want %v", got, rid)
	}

	if ok, _ := idx.Next(); ok {
		t.Errorf("expected exactly one match")
	}
}

func TestIndexMultipleDistinctKeys(t *testing.T) {
	txn := newTestTx(t, 8)
	idx := newIntIndex(t, txn, "multitest")
	defer idx.Close()

	keys := []int64{50, 10, 90, 30, 70, 20, 80, 40, 60}
	for i, k := range keys {
		rid := types.NewRID(file.NewBlockID("data.tbl", int64(i+1)), int64(i+1))
		if err := idx.Insert(types.NewConstantInt(k), rid); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	for i, k := range keys {
		want := types.NewRID(file.NewBlockID("data.tbl", int64(i+1)), int64(i+1))
		got, found := findOne(t, idx, types.NewConstantInt(k))
		if !found {
			t.Errorf("key %d: not found", k)
			continue
		}
		if !got.Equals(want) {
			t.Errorf("key %d: got %v, want %v", k, got, want)
		}
	}
}

func TestIndexDuplicateKeysAllRetrievable(t *testing.T) {
	txn := newTestTx(t, 8)
	idx := newIntIndex(t, txn, "duptest")
	defer idx.Close()

	key := types.NewConstantInt(42)
	const n = 40
	want := make(map[types.RID]bool, n)
	for i := 0; i < n; i++ {
		rid := types.NewRID(file.NewBlockID("data.tbl", int64(i/10+1)), int64(i%10))
		want[rid] = true
		if err := idx.Insert(key, rid); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	if err := idx.BeforeFirst(types.NewConstantPoint(key)); err != nil {
		t.Fatalf("BeforeFirst: %v", err)
	}
	found := 0
	for {
		ok, err := idx.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		rid := idx.DataRID()
		if !want[rid] {
			t.Errorf("unexpected rid %v", rid)
		}
		delete(want, rid)
		found++
	}
	if found != n {
		t.Errorf("found %d records, want %d", found, n)
	}
	if len(want) != 0 {
		t.Errorf("%d expected rids were never found", len(want))
	}
}

func TestIndexStringKeys(t *testing.T) {
	txn := newTestTx(t, 8)
	idx := newStringIndex(t, txn, "stringtest")
	defer idx.Close()

	keys := []string{"apple", "banana", "cherry", "date", "elderberry"}
	for i, k := range keys {
		rid := types.NewRID(file.NewBlockID("data.tbl", int64(i+1)), int64(i+1))
		if err := idx.Insert(types.NewConstantString(k), rid); err != nil {
			t.Fatalf("Insert(%q): %v", k, err)
		}
	}

	for i, k := range keys {
		want := types.NewRID(file.NewBlockID("data.tbl", int64(i+1)), int64(i+1))
		got, found := findOne(t, idx, types.NewConstantString(k))
		if !found {
			t.Errorf("key %q: not found", k)
			continue
		}
		if !got.Equals(want) {
			t.Errorf("key %q: got %v, want %v", k, got, want)
		}
	}
}

func TestIndexDelete(t *testing.T) {
	txn := newTestTx(t, 8)
	idx := newIntIndex(t, txn, "deletetest")
	defer idx.Close()

	key1, key2 := types.NewConstantInt(10), types.NewConstantInt(20)
	rid1 := types.NewRID(file.NewBlockID("data.tbl", 1), 1)
	rid2 := types.NewRID(file.NewBlockID("data.tbl", 2), 2)

	if err := idx.Insert(key1, rid1); err != nil {
		t.Fatalf("Insert key1: %v", err)
	}
	if err := idx.Insert(key2, rid2); err != nil {
		t.Fatalf("Insert key2: %v", err)
	}

	if err := idx.Delete(key1, rid1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, found := findOne(t, idx, key1); found {
		t.Errorf("key1 should be gone after delete")
	}
	if _, found := findOne(t, idx, key2); !found {
		t.Errorf("key2 should be unaffected by deleting key1")
	}
}

func TestIndexManyRecordsForcesSplits(t *testing.T) {
	txn := newTestTx(t, 8)
	idx := newIntIndex(t, txn, "manytest")
	defer idx.Close()

	const n = 300
	for i := 0; i < n; i++ {
		rid := types.NewRID(file.NewBlockID("data.tbl", int64(i/10+1)), int64(i%10))
		if err := idx.Insert(types.NewConstantInt(int64(i)), rid); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		want := types.NewRID(file.NewBlockID("data.tbl", int64(i/10+1)), int64(i%10))
		got, found := findOne(t, idx, types.NewConstantInt(int64(i)))
		if !found {
			t.Errorf("key %d: not found after splits", i)
			continue
		}
		if !got.Equals(want) {
			t.Errorf("key %d: got %v, want %v", i, got, want)
		}
	}
}

// TestIndexRangeScanCrossesLeafSplits exercises the forward sibling chain
// that Leaf.advancePage follows: enough distinct keys to force several
// splits, then a single BeforeFirst/Next range scan across all of them.
func TestIndexRangeScanCrossesLeafSplits(t *testing.T) {
	txn := newTestTx(t, 8)
	idx := newIntIndex(t, txn, "rangetest")
	defer idx.Close()

	const n = 150
	for i := 0; i < n; i++ {
		rid := types.NewRID(file.NewBlockID("data.tbl", 1), int64(i))
		if err := idx.Insert(types.NewConstantInt(int64(i)), rid); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	rng := types.NewConstantRange(types.NewConstantInt(40), types.NewConstantInt(60))
	if err := idx.BeforeFirst(rng); err != nil {
		t.Fatalf("BeforeFirst: %v", err)
	}

	seen := map[int64]bool{}
	for {
		ok, err := idx.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		seen[idx.DataRID().Slot()] = true
	}

	for want := int64(40); want <= 60; want++ {
		if !seen[want] {
			t.Errorf("range scan missed key %d", want)
		}
	}
	if len(seen) != 21 {
		t.Errorf("expected exactly 21 keys in [40, 60], found %d", len(seen))
	}
}

func TestIndexReadOnlyRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	fm, err := file.NewFileManager(dir, 400)
	if err != nil {
		t.Fatalf("NewFileManager: %v", err)
	}
	lm, err := log.NewLogManager(fm, "testlog")
	if err != nil {
		t.Fatalf("NewLogManager: %v", err)
	}
	pool := buffer.NewPool(fm, lm, 8)
	lt := tx.NewLockTable()
	cfg := config.BufferMgrConfig{PoolSize: 8, MaxTime: 2 * time.Second, Epsilon: 10 * time.Millisecond}

	// First create the index's on-disk structure with a read/write
	// transaction, so the read-only transaction below only ever opens
	// an existing index rather than needing to create one.
	rwTxn := tx.NewTransaction(fm, lm, pool, lt, cfg)
	seed := newIntIndex(t, rwTxn, "rotest")
	seed.Close()
	if err := rwTxn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	roTxn := tx.NewReadOnlyTransaction(fm, lm, pool, lt, cfg)
	idx := newIntIndex(t, roTxn, "rotest")
	defer idx.Close()

	err = idx.Insert(types.NewConstantInt(1), types.NewRID(file.NewBlockID("data.tbl", 0), 0))
	if err == nil {
		t.Errorf("expected a read-only transaction to reject Insert")
	}

	err = idx.Delete(types.NewConstantInt(1), types.NewRID(file.NewBlockID("data.tbl", 0), 0))
	if err == nil {
		t.Errorf("expected a read-only transaction to reject Delete")
	}
}

func TestSearchCost(t *testing.T) {
	cases := []struct {
		numBlocks, rpb, want int
	}{
		{1, 10, 1},
		{10, 10, 2},
		{100, 10, 3},
		{1000, 10, 4},
		{100, 100, 2},
	}

	for _, tc := range cases {
		got := SearchCost(tc.numBlocks, tc.rpb)
		if got != tc.want {
			t.Errorf("SearchCost(%d, %d) = %d, want %d", tc.numBlocks, tc.rpb, got, tc.want)
		}
	}
}
