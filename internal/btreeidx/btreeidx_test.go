package btreeidx

import (
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dbforge/btreeidx/internal/bufmgr"
	"github.com/dbforge/btreeidx/internal/relio"
)

const testRecordSize = 4 // one int32, at offset 0 — enough for these tests' key domain

func newEmptyIndex(t *testing.T, dir string, relName string, attrType AttrType, pageSize int) *Index {
	t.Helper()
	bp := bufmgr.NewPool(bufmgr.Config{})
	relPath := filepath.Join(dir, relName+".rel")
	rel, err := relio.CreateRelation(bp, relPath, pageSize, testRecordSize)
	if err != nil {
		t.Fatalf("CreateRelation: %v", err)
	}
	idx, err := Create(bp, rel, dir, relName, 0, attrType, pageSize)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := rel.Close(); err != nil {
		t.Fatalf("rel.Close: %v", err)
	}
	return idx
}

func scanAll(t *testing.T, idx *Index, lowOp Opcode, lowVal any, highOp Opcode, highVal any) []bufmgr.RecordId {
	t.Helper()
	if err := idx.StartScan(lowOp, lowVal, highOp, highVal); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	var out []bufmgr.RecordId
	for {
		rid, err := idx.ScanNext()
		if errors.Is(err, ErrIndexScanCompleted) {
			break
		}
		if err != nil {
			t.Fatalf("ScanNext: %v", err)
		}
		out = append(out, rid)
	}
	if err := idx.EndScan(); err != nil {
		t.Fatalf("EndScan: %v", err)
	}
	return out
}

func rid(page uint32, slot uint16) bufmgr.RecordId {
	return bufmgr.RecordId{PageId: bufmgr.PageId(page), SlotId: slot}
}

// TestScenarioAB follows spec.md's table scenarios A and B: a leaf-only
// tree that splits into a root non-leaf with two leaf children once it
// overflows L=3.
func TestScenarioAB(t *testing.T) {
	dir := t.TempDir()
	idx := newEmptyIndex(t, dir, "orders", AttrInt32, 48)

	if got := leafCapacity(48, keyWidth(AttrInt32)); got != 3 {
		t.Fatalf("test assumes L=3 for page size 48, got %d", got)
	}

	if err := idx.InsertEntry(int32(5), rid(1, 1)); err != nil {
		t.Fatalf("insert 5: %v", err)
	}
	if err := idx.InsertEntry(int32(2), rid(1, 2)); err != nil {
		t.Fatalf("insert 2: %v", err)
	}
	if err := idx.InsertEntry(int32(8), rid(1, 3)); err != nil {
		t.Fatalf("insert 8: %v", err)
	}

	got := scanAll(t, idx, OpGTE, int32(0), OpLTE, int32(10))
	want := []bufmgr.RecordId{rid(1, 2), rid(1, 1), rid(1, 3)}
	if !ridSliceEqual(got, want) {
		t.Fatalf("scenario A: got %v, want %v", got, want)
	}

	// Scenario B: one more insert overflows the leaf (L=3) and the root
	// becomes a non-leaf with separator 4 (the greatest key on its left).
	if err := idx.InsertEntry(int32(4), rid(1, 4)); err != nil {
		t.Fatalf("insert 4: %v", err)
	}

	rootBuf, err := idx.bp.ReadPage(idx.file, idx.rootPageNo)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if pageKind(rootBuf) != nodeKindNonLeaf {
		t.Fatalf("scenario B: expected root to become a non-leaf")
	}
	nv := newNonLeafView(int32Ops(), idx.nonLeafCap, rootBuf)
	if nv.numKeys() != 1 || nv.keyAt(0) != 4 {
		t.Fatalf("scenario B: expected root with 1 key = 4, got numKeys=%d key0=%v", nv.numKeys(), nv.keyAt(0))
	}
	if err := idx.bp.UnpinPage(idx.file, idx.rootPageNo, false); err != nil {
		t.Fatalf("unpin root: %v", err)
	}

	got = scanAll(t, idx, OpGTE, int32(0), OpLTE, int32(10))
	want = []bufmgr.RecordId{rid(1, 2), rid(1, 4), rid(1, 1), rid(1, 3)}
	if !ridSliceEqual(got, want) {
		t.Fatalf("scenario B: got %v, want %v", got, want)
	}

	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestScenarioCD seeds 1..1000 and exercises two bounded-range scans.
func TestScenarioCD(t *testing.T) {
	dir := t.TempDir()
	idx := newEmptyIndex(t, dir, "wide", AttrInt32, 512)

	for k := int32(1); k <= 1000; k++ {
		if err := idx.InsertEntry(k, rid(uint32(k), 0)); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}

	// C: (10, GT, 20, LTE) -> keys 11..20 inclusive.
	got := scanAll(t, idx, OpGT, int32(10), OpLTE, int32(20))
	if len(got) != 10 {
		t.Fatalf("scenario C: expected 10 results, got %d", len(got))
	}
	for i, r := range got {
		want := rid(uint32(11+i), 0)
		if r != want {
			t.Fatalf("scenario C: result %d: got %v, want %v", i, r, want)
		}
	}

	// D: (500, GTE, 500, LTE) -> exactly key 500.
	got = scanAll(t, idx, OpGTE, int32(500), OpLTE, int32(500))
	if len(got) != 1 || got[0] != rid(500, 0) {
		t.Fatalf("scenario D: got %v, want [%v]", got, rid(500, 0))
	}

	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestScenarioE builds an index, closes it, reopens with matching
// constructor arguments, and checks the full scan is unchanged.
func TestScenarioE(t *testing.T) {
	dir := t.TempDir()
	idx := newEmptyIndex(t, dir, "reopen", AttrInt32, 512)

	for _, k := range []int32{30, 10, 20, 5, 25} {
		if err := idx.InsertEntry(k, rid(uint32(k), 0)); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}
	before := scanAll(t, idx, OpGTE, int32(-1<<30), OpLTE, int32(1<<30-1))
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	bp2 := bufmgr.NewPool(bufmgr.Config{})
	idx2, err := Open(bp2, dir, "reopen", 0, AttrInt32, 512)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	after := scanAll(t, idx2, OpGTE, int32(-1<<30), OpLTE, int32(1<<30-1))
	if !ridSliceEqual(before, after) {
		t.Fatalf("scenario E: scan after reopen differs: before=%v after=%v", before, after)
	}
	if err := idx2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestScenarioF reopens an index with a mismatched attrType and expects
// ErrBadIndexInfo. A mismatched attrByteOffset names a different index
// file, so that case expects bufmgr.ErrFileNotFound instead.
func TestScenarioF(t *testing.T) {
	dir := t.TempDir()
	idx := newEmptyIndex(t, dir, "mismatch", AttrInt32, 512)
	if err := idx.InsertEntry(int32(1), rid(1, 0)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	bp2 := bufmgr.NewPool(bufmgr.Config{})

	// Opening the same file (offset 0) but claiming a different attrType
	// than what was stored must fail with ErrBadIndexInfo.
	idx2, err := Open(bp2, dir, "mismatch", 0, AttrFloat64, 512)
	if err == nil {
		idx2.Close()
		t.Fatalf("expected ErrBadIndexInfo for mismatched attrType")
	}
	if !errors.Is(err, ErrBadIndexInfo) {
		t.Fatalf("expected ErrBadIndexInfo, got %v", err)
	}

	// A nonexistent offset names a different, nonexistent file.
	if _, err := Open(bp2, dir, "mismatch", 4, AttrInt32, 512); !errors.Is(err, bufmgr.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound for a different index file name, got %v", err)
	}
}

// TestScenarioG checks StartScan rejects disallowed opcodes.
func TestScenarioG(t *testing.T) {
	dir := t.TempDir()
	idx := newEmptyIndex(t, dir, "badop", AttrInt32, 512)
	err := idx.StartScan(OpLT, int32(10), OpLT, int32(20))
	if !errors.Is(err, ErrBadOpcodes) {
		t.Fatalf("expected ErrBadOpcodes, got %v", err)
	}
}

// TestScenarioH checks StartScan rejects an inverted range.
func TestScenarioH(t *testing.T) {
	dir := t.TempDir()
	idx := newEmptyIndex(t, dir, "badrange", AttrInt32, 512)
	err := idx.StartScan(OpGTE, int32(20), OpLTE, int32(10))
	if !errors.Is(err, ErrBadScanRange) {
		t.Fatalf("expected ErrBadScanRange, got %v", err)
	}
}

// TestDuplicateKeysPreserved checks invariant #9: all-equal keys remain
// individually insertable and scannable.
func TestDuplicateKeysPreserved(t *testing.T) {
	dir := t.TempDir()
	idx := newEmptyIndex(t, dir, "dupes", AttrInt32, 48)

	for i := 0; i < 7; i++ {
		if err := idx.InsertEntry(int32(9), rid(1, uint16(i))); err != nil {
			t.Fatalf("insert dup %d: %v", i, err)
		}
	}
	got := scanAll(t, idx, OpGTE, int32(9), OpLTE, int32(9))
	if len(got) != 7 {
		t.Fatalf("expected 7 duplicate entries, got %d", len(got))
	}
}

// TestScanExclusiveBounds checks invariant #10: GT/LT exclude the
// boundary, GTE/LTE include it.
func TestScanExclusiveBounds(t *testing.T) {
	dir := t.TempDir()
	idx := newEmptyIndex(t, dir, "bounds", AttrInt32, 512)
	for _, k := range []int32{10, 20, 30} {
		if err := idx.InsertEntry(k, rid(uint32(k), 0)); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}

	inclusive := scanAll(t, idx, OpGTE, int32(10), OpLTE, int32(30))
	if len(inclusive) != 3 {
		t.Fatalf("inclusive scan: expected 3, got %d", len(inclusive))
	}

	exclusive := scanAll(t, idx, OpGT, int32(10), OpLT, int32(30))
	if len(exclusive) != 1 || exclusive[0] != rid(20, 0) {
		t.Fatalf("exclusive scan: expected just key 20, got %v", exclusive)
	}
}

// TestScanNotInitialized checks ScanNext/EndScan fail cleanly with no
// active scan.
func TestScanNotInitialized(t *testing.T) {
	dir := t.TempDir()
	idx := newEmptyIndex(t, dir, "noscan", AttrInt32, 512)

	if _, err := idx.ScanNext(); !errors.Is(err, ErrScanNotInitialized) {
		t.Fatalf("expected ErrScanNotInitialized, got %v", err)
	}
	if err := idx.EndScan(); !errors.Is(err, ErrScanNotInitialized) {
		t.Fatalf("expected ErrScanNotInitialized, got %v", err)
	}
}

// TestFloat64AndStr10Domains exercises the other two key domains end to
// end, since the int32 scenarios above cover the tree algorithms.
func TestFloat64AndStr10Domains(t *testing.T) {
	dir := t.TempDir()

	fidx := newEmptyIndex(t, dir, "prices", AttrFloat64, 512)
	for _, k := range []float64{3.5, 1.25, 2.0} {
		if err := fidx.InsertEntry(k, rid(1, 0)); err != nil {
			t.Fatalf("float insert %v: %v", k, err)
		}
	}
	got := scanAll(t, fidx, OpGTE, float64(0), OpLTE, float64(10))
	if len(got) != 3 {
		t.Fatalf("float scan: expected 3 results, got %d", len(got))
	}
	if err := fidx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	sidx := newEmptyIndex(t, dir, "names", AttrString10, 512)
	for _, k := range []string{"charlie", "alice", "bob"} {
		if err := sidx.InsertEntry(k, rid(1, 0)); err != nil {
			t.Fatalf("str insert %v: %v", k, err)
		}
	}
	got = scanAll(t, sidx, OpGTE, "", OpLTE, NewStr10("zzzzzzzzzz"))
	if len(got) != 3 {
		t.Fatalf("str10 scan: expected 3 results, got %d", len(got))
	}
	if err := sidx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestThreeLevelTree forces growRoot to run more than once by inserting
// enough sequential keys at L=3 (pageSize=48) that the first non-leaf
// level itself overflows and needs a parent, producing a tree with two
// non-leaf levels above the leaves. A full scan must still return every
// key, in order, afterward.
func TestThreeLevelTree(t *testing.T) {
	dir := t.TempDir()
	idx := newEmptyIndex(t, dir, "tall", AttrInt32, 48)

	const n = 100
	for k := int32(1); k <= n; k++ {
		if err := idx.InsertEntry(k, rid(uint32(k), 0)); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}

	depth := 1
	curId := idx.rootPageNo
	for {
		buf, err := idx.bp.ReadPage(idx.file, curId)
		if err != nil {
			t.Fatalf("read page %d: %v", curId, err)
		}
		if pageKind(buf) == nodeKindLeaf {
			if err := idx.bp.UnpinPage(idx.file, curId, false); err != nil {
				t.Fatalf("unpin %d: %v", curId, err)
			}
			break
		}
		nv := newNonLeafView(int32Ops(), idx.nonLeafCap, buf)
		next := nv.childAt(0)
		if err := idx.bp.UnpinPage(idx.file, curId, false); err != nil {
			t.Fatalf("unpin %d: %v", curId, err)
		}
		curId = next
		depth++
	}
	if depth < 3 {
		t.Fatalf("expected at least 2 non-leaf levels above the leaves after %d sequential inserts at L=3, got depth %d", n, depth)
	}

	got := scanAll(t, idx, OpGTE, int32(1), OpLTE, int32(n))
	if len(got) != n {
		t.Fatalf("expected %d results from a full scan of a %d-level tree, got %d", n, depth, len(got))
	}
	for i, r := range got {
		if want := rid(uint32(i+1), 0); r != want {
			t.Fatalf("result %d: got %v, want %v", i, r, want)
		}
	}

	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestBootstrapIndexesExistingRecords drives bootstrap end to end: records
// are appended to the backing relation before the index is ever created,
// so Create's call to bootstrap must scan real records, extract each
// one's key, and insert it, rather than hit EndOfFile immediately.
func TestBootstrapIndexesExistingRecords(t *testing.T) {
	dir := t.TempDir()
	bp := bufmgr.NewPool(bufmgr.Config{})
	relPath := filepath.Join(dir, "seeded.rel")
	rel, err := relio.CreateRelation(bp, relPath, 512, testRecordSize)
	if err != nil {
		t.Fatalf("CreateRelation: %v", err)
	}

	keys := []int32{42, 7, 19, 100, 3}
	rids := make([]bufmgr.RecordId, len(keys))
	for i, k := range keys {
		buf := make([]byte, testRecordSize)
		binary.LittleEndian.PutUint32(buf, uint32(k))
		r, err := rel.AppendRecord(buf)
		if err != nil {
			t.Fatalf("AppendRecord(%d): %v", k, err)
		}
		rids[i] = r
	}

	idx, err := Create(bp, rel, dir, "seeded", 0, AttrInt32, 512)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := rel.Close(); err != nil {
		t.Fatalf("rel.Close: %v", err)
	}

	got := scanAll(t, idx, OpGTE, int32(-1<<30), OpLTE, int32(1<<30-1))
	if len(got) != len(keys) {
		t.Fatalf("expected bootstrap to index %d records, got %d", len(keys), len(got))
	}
	// Key order is 3, 7, 19, 42, 100 -> indices 4, 1, 2, 0, 3 into rids.
	want := []bufmgr.RecordId{rids[4], rids[1], rids[2], rids[0], rids[3]}
	if !ridSliceEqual(got, want) {
		t.Fatalf("bootstrap scan order: got %v, want %v", got, want)
	}

	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestCloseEndsActiveScan checks that Close ends an active scan (and so
// releases its pinned leaf) rather than flushing the file out from under
// it, per spec.md §5.
func TestCloseEndsActiveScan(t *testing.T) {
	dir := t.TempDir()
	idx := newEmptyIndex(t, dir, "closemidscan", AttrInt32, 512)
	for _, k := range []int32{1, 2, 3} {
		if err := idx.InsertEntry(k, rid(uint32(k), 0)); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}

	if err := idx.StartScan(OpGTE, int32(0), OpLTE, int32(10)); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	if _, err := idx.ScanNext(); err != nil {
		t.Fatalf("ScanNext: %v", err)
	}

	if err := idx.Close(); err != nil {
		t.Fatalf("Close with an active scan: %v", err)
	}
	if idx.scan != nil {
		t.Fatalf("expected Close to clear the active scan")
	}
}

// TestBuildIDStable checks BuildID returns the same, non-empty id across
// multiple Index instances in this process (it tags log lines, not the
// on-disk meta page).
func TestBuildIDStable(t *testing.T) {
	dir := t.TempDir()
	idx1 := newEmptyIndex(t, dir, "b1", AttrInt32, 512)
	idx2 := newEmptyIndex(t, dir, "b2", AttrInt32, 512)

	if idx1.BuildID() == "" {
		t.Fatalf("expected a non-empty BuildID")
	}
	if idx1.BuildID() != idx2.BuildID() {
		t.Fatalf("expected the same process-lifetime BuildID across indexes, got %q and %q", idx1.BuildID(), idx2.BuildID())
	}

	if err := idx1.Close(); err != nil {
		t.Fatalf("Close idx1: %v", err)
	}
	if err := idx2.Close(); err != nil {
		t.Fatalf("Close idx2: %v", err)
	}
}

func ridSliceEqual(a, b []bufmgr.RecordId) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
