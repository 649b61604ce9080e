package btreeidx

import (
	"fmt"

	"github.com/dbforge/btreeidx/internal/bufmgr"
)

// Opcode selects the comparison a scan bound uses against a stored key.
type Opcode int

const (
	OpGT Opcode = iota
	OpGTE
	OpLT
	OpLTE
)

// scanState holds the live cursor for one in-progress scan. Its two
// closures are built by the generic startScan[K] for whichever key
// domain the index was opened with, so Index itself need not be generic.
type scanState struct {
	next  func() (bufmgr.RecordId, error)
	close func() error
}

// StartScan begins a range scan of [lowVal, highVal] (bounds inclusive or
// exclusive per lowOp/highOp), per spec.md §4.5. lowOp must be OpGT or
// OpGTE; highOp must be OpLT or OpLTE. Only one scan may be active on an
// Index at a time: starting a scan while another is active ends the
// earlier one first.
func (idx *Index) StartScan(lowOp Opcode, lowVal any, highOp Opcode, highVal any) error {
	switch idx.attrType {
	case AttrInt32:
		lo, ok1 := lowVal.(int32)
		hi, ok2 := highVal.(int32)
		if !ok1 || !ok2 {
			return fmt.Errorf("btreeidx: StartScan: expected int32 bounds for %s", idx.attrType)
		}
		return startScan(idx, int32Ops(), lowOp, lo, highOp, hi)
	case AttrFloat64:
		lo, ok1 := lowVal.(float64)
		hi, ok2 := highVal.(float64)
		if !ok1 || !ok2 {
			return fmt.Errorf("btreeidx: StartScan: expected float64 bounds for %s", idx.attrType)
		}
		return startScan(idx, float64Ops(), lowOp, lo, highOp, hi)
	case AttrString10:
		lo, err := asStr10(lowVal)
		if err != nil {
			return err
		}
		hi, err := asStr10(highVal)
		if err != nil {
			return err
		}
		return startScan(idx, str10Ops(), lowOp, lo, highOp, hi)
	default:
		return fmt.Errorf("btreeidx: StartScan: %w", ErrBadIndexInfo)
	}
}

func asStr10(v any) (Str10, error) {
	switch k := v.(type) {
	case Str10:
		return k, nil
	case string:
		return NewStr10(k), nil
	default:
		return Str10{}, fmt.Errorf("btreeidx: StartScan: expected Str10 or string bound, got %T", v)
	}
}

// ScanNext returns the next RecordId in range, or ErrIndexScanCompleted
// once the range is exhausted, or ErrScanNotInitialized if no scan is
// running.
func (idx *Index) ScanNext() (bufmgr.RecordId, error) {
	if idx.scan == nil {
		return bufmgr.RecordId{}, ErrScanNotInitialized
	}
	return idx.scan.next()
}

// EndScan terminates the current scan, releasing any pinned page.
func (idx *Index) EndScan() error {
	if idx.scan == nil {
		return ErrScanNotInitialized
	}
	err := idx.scan.close()
	idx.scan = nil
	return err
}

func startScan[K any](idx *Index, ops keyOps[K], lowOp Opcode, lowVal K, highOp Opcode, highVal K) error {
	if lowOp != OpGT && lowOp != OpGTE {
		return ErrBadOpcodes
	}
	if highOp != OpLT && highOp != OpLTE {
		return ErrBadOpcodes
	}
	if ops.compare(lowVal, highVal) > 0 {
		return ErrBadScanRange
	}
	if idx.scan != nil {
		if err := idx.EndScan(); err != nil {
			return err
		}
	}

	leafId, pos, buf, found, err := locateLowerBound(idx, ops, lowOp, lowVal)
	if err != nil {
		return err
	}
	if !found {
		return ErrNoSuchKeyFound
	}

	st := &scanState{}
	done := false

	st.next = func() (bufmgr.RecordId, error) {
		if done {
			return bufmgr.RecordId{}, ErrIndexScanCompleted
		}
		lv := newLeafView(ops, idx.leafCap, buf)
		for {
			n := lv.numKeys()
			if pos >= n {
				nextId := lv.rightSib()
				if err := idx.bp.UnpinPage(idx.file, leafId, false); err != nil {
					done = true
					return bufmgr.RecordId{}, fmt.Errorf("btreeidx: unpin leaf %d: %w", leafId, err)
				}
				if nextId == bufmgr.InvalidPageId {
					done = true
					return bufmgr.RecordId{}, ErrIndexScanCompleted
				}
				nb, err := idx.bp.ReadPage(idx.file, nextId)
				if err != nil {
					done = true
					return bufmgr.RecordId{}, fmt.Errorf("btreeidx: read leaf %d: %w", nextId, err)
				}
				leafId, buf, pos = nextId, nb, 0
				lv = newLeafView(ops, idx.leafCap, buf)
				continue
			}

			key := lv.keyAt(pos)
			if !withinHighBound(ops, key, highOp, highVal) {
				done = true
				if err := idx.bp.UnpinPage(idx.file, leafId, false); err != nil {
					return bufmgr.RecordId{}, fmt.Errorf("btreeidx: unpin leaf %d: %w", leafId, err)
				}
				return bufmgr.RecordId{}, ErrIndexScanCompleted
			}
			rid := lv.ridAt(pos)
			pos++
			return rid, nil
		}
	}

	st.close = func() error {
		if done {
			return nil
		}
		done = true
		return idx.bp.UnpinPage(idx.file, leafId, false)
	}

	idx.scan = st
	return nil
}

func withinHighBound[K any](ops keyOps[K], key K, highOp Opcode, highVal K) bool {
	c := ops.compare(key, highVal)
	if highOp == OpLTE {
		return c <= 0
	}
	return c < 0
}

// locateLowerBound descends the tree to the leaf and in-leaf position of
// the first entry satisfying the scan's low bound, walking right across
// sibling leaves if the landing leaf has no such entry itself. found is
// false if no key in the whole index satisfies the bound.
func locateLowerBound[K any](idx *Index, ops keyOps[K], lowOp Opcode, lowVal K) (bufmgr.PageId, int, bufmgr.Page, bool, error) {
	curId := idx.rootPageNo
	for {
		buf, err := idx.bp.ReadPage(idx.file, curId)
		if err != nil {
			return 0, 0, nil, false, fmt.Errorf("btreeidx: read page %d: %w", curId, err)
		}
		if pageKind(buf) == nodeKindLeaf {
			lv := newLeafView(ops, idx.leafCap, buf)
			n := lv.numKeys()
			pos := 0
			for pos < n && !satisfiesLowBound(ops, lv.keyAt(pos), lowOp, lowVal) {
				pos++
			}
			for pos >= n {
				rightId := lv.rightSib()
				if err := idx.bp.UnpinPage(idx.file, curId, false); err != nil {
					return 0, 0, nil, false, fmt.Errorf("btreeidx: unpin leaf %d: %w", curId, err)
				}
				if rightId == bufmgr.InvalidPageId {
					return 0, 0, nil, false, nil
				}
				curId = rightId
				buf, err = idx.bp.ReadPage(idx.file, curId)
				if err != nil {
					return 0, 0, nil, false, fmt.Errorf("btreeidx: read page %d: %w", curId, err)
				}
				lv = newLeafView(ops, idx.leafCap, buf)
				n = lv.numKeys()
				pos = 0
				for pos < n && !satisfiesLowBound(ops, lv.keyAt(pos), lowOp, lowVal) {
					pos++
				}
			}
			return curId, pos, buf, true, nil
		}

		nv := newNonLeafView(ops, idx.nonLeafCap, buf)
		childIdx := findChildIndex(ops, nv, lowVal)
		nextId := nv.childAt(childIdx)
		if err := idx.bp.UnpinPage(idx.file, curId, false); err != nil {
			return 0, 0, nil, false, fmt.Errorf("btreeidx: unpin page %d: %w", curId, err)
		}
		curId = nextId
	}
}

func satisfiesLowBound[K any](ops keyOps[K], key K, lowOp Opcode, lowVal K) bool {
	c := ops.compare(key, lowVal)
	if lowOp == OpGTE {
		return c >= 0
	}
	return c > 0
}
