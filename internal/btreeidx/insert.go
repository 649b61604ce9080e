package btreeidx

import (
	"fmt"

	"github.com/dbforge/btreeidx/internal/bufmgr"
)

// InsertEntry inserts one (key, rid) pair into the index, growing the tree
// and splitting nodes as needed. key must be the same underlying Go type
// the index was created with (int32, float64, or Str10/string for
// AttrString10).
func (idx *Index) InsertEntry(key any, rid bufmgr.RecordId) error {
	switch idx.attrType {
	case AttrInt32:
		k, ok := key.(int32)
		if !ok {
			return fmt.Errorf("btreeidx: InsertEntry: expected int32 key for %s, got %T", idx.attrType, key)
		}
		return insertEntry(idx, int32Ops(), k, rid)
	case AttrFloat64:
		k, ok := key.(float64)
		if !ok {
			return fmt.Errorf("btreeidx: InsertEntry: expected float64 key for %s, got %T", idx.attrType, key)
		}
		return insertEntry(idx, float64Ops(), k, rid)
	case AttrString10:
		var k Str10
		switch v := key.(type) {
		case Str10:
			k = v
		case string:
			k = NewStr10(v)
		default:
			return fmt.Errorf("btreeidx: InsertEntry: expected Str10 or string key for %s, got %T", idx.attrType, key)
		}
		return insertEntry(idx, str10Ops(), k, rid)
	default:
		return fmt.Errorf("btreeidx: InsertEntry: %w", ErrBadIndexInfo)
	}
}

type leafEntry[K any] struct {
	key K
	rid bufmgr.RecordId
}

type childEntry[K any] struct {
	key   K // the separator preceding this child; unused for child 0
	child bufmgr.PageId
}

// stackFrame records one step of the root-to-leaf descent so a split can
// be propagated back up without parent pointers on disk.
type stackFrame struct {
	pageId   bufmgr.PageId
	childIdx int
}

// pendingSplit is a (separator key, new right sibling page) pair still
// waiting to be inserted into a parent, carried generically up the stack.
type pendingSplit[K any] struct {
	key   K
	right bufmgr.PageId
}

func insertEntry[K any](idx *Index, ops keyOps[K], key K, rid bufmgr.RecordId) error {
	stack, leafId, err := descendToLeaf(idx, ops, key)
	if err != nil {
		return err
	}

	leafBuf, err := idx.bp.ReadPage(idx.file, leafId)
	if err != nil {
		return fmt.Errorf("btreeidx: read leaf %d: %w", leafId, err)
	}
	lv := newLeafView(ops, idx.leafCap, leafBuf)
	entries := readLeafEntries(lv)
	entries = insertLeafEntrySorted(ops, entries, leafEntry[K]{key: key, rid: rid})

	if len(entries) <= idx.leafCap {
		writeLeafEntries(lv, entries)
		return idx.bp.UnpinPage(idx.file, leafId, true)
	}

	split, err := splitLeaf(idx, ops, lv, leafId, entries)
	if err != nil {
		idx.bp.UnpinPage(idx.file, leafId, false)
		return err
	}
	if err := idx.bp.UnpinPage(idx.file, leafId, true); err != nil {
		return fmt.Errorf("btreeidx: unpin leaf %d after split: %w", leafId, err)
	}
	return propagateSplit(idx, ops, stack, split)
}

// descendToLeaf walks from the root to the leaf that should contain key,
// pushing a stackFrame for every non-leaf visited. Ties route left: a key
// equal to a separator descends into the child to its left.
func descendToLeaf[K any](idx *Index, ops keyOps[K], key K) ([]stackFrame, bufmgr.PageId, error) {
	var stack []stackFrame
	curId := idx.rootPageNo

	for {
		buf, err := idx.bp.ReadPage(idx.file, curId)
		if err != nil {
			return nil, 0, fmt.Errorf("btreeidx: read page %d: %w", curId, err)
		}
		if pageKind(buf) == nodeKindLeaf {
			if err := idx.bp.UnpinPage(idx.file, curId, false); err != nil {
				return nil, 0, fmt.Errorf("btreeidx: unpin page %d: %w", curId, err)
			}
			return stack, curId, nil
		}

		nv := newNonLeafView(ops, idx.nonLeafCap, buf)
		childIdx := findChildIndex(ops, nv, key)
		nextId := nv.childAt(childIdx)
		if err := idx.bp.UnpinPage(idx.file, curId, false); err != nil {
			return nil, 0, fmt.Errorf("btreeidx: unpin page %d: %w", curId, err)
		}
		stack = append(stack, stackFrame{pageId: curId, childIdx: childIdx})
		curId = nextId
	}
}

// findChildIndex returns which of nv's numKeys()+1 children covers key,
// routing a tie (key == separator) to the left child.
func findChildIndex[K any](ops keyOps[K], nv nonLeafView[K], key K) int {
	n := nv.numKeys()
	for i := 0; i < n; i++ {
		if ops.compare(key, nv.keyAt(i)) <= 0 {
			return i
		}
	}
	return n
}

func readLeafEntries[K any](lv leafView[K]) []leafEntry[K] {
	n := lv.numKeys()
	out := make([]leafEntry[K], n)
	for i := 0; i < n; i++ {
		out[i] = leafEntry[K]{key: lv.keyAt(i), rid: lv.ridAt(i)}
	}
	return out
}

func writeLeafEntries[K any](lv leafView[K], entries []leafEntry[K]) {
	lv.setNumKeys(len(entries))
	for i, e := range entries {
		lv.setEntry(i, e.key, e.rid)
	}
}

// insertLeafEntrySorted inserts e in key order, after any existing entries
// with an equal key (duplicates are kept in insertion order).
func insertLeafEntrySorted[K any](ops keyOps[K], entries []leafEntry[K], e leafEntry[K]) []leafEntry[K] {
	pos := len(entries)
	for i, existing := range entries {
		if ops.compare(e.key, existing.key) < 0 {
			pos = i
			break
		}
	}
	entries = append(entries, leafEntry[K]{})
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = e
	return entries
}

// splitLeaf divides entries (one past capacity) between the existing leaf
// page and a freshly allocated right sibling, keeping ceil((L+1)/2)
// entries on the left per spec.md §4.3. The promoted separator is the
// left half's last (largest) key, not the right half's first: the
// non-leaf invariant routes keys "≤ separator" left and "> separator"
// right, so the separator itself must double as the greatest key the
// left subtree can hold.
func splitLeaf[K any](idx *Index, ops keyOps[K], lv leafView[K], leafId bufmgr.PageId, entries []leafEntry[K]) (pendingSplit[K], error) {
	mid := (len(entries) + 1) / 2
	left, right := entries[:mid], entries[mid:]

	rightId, rightBuf, err := idx.bp.AllocPage(idx.file)
	if err != nil {
		return pendingSplit[K]{}, fmt.Errorf("btreeidx: alloc leaf sibling: %w", err)
	}
	initLeaf(rightBuf, lv.rightSib())
	rightView := newLeafView(ops, idx.leafCap, rightBuf)
	writeLeafEntries(rightView, right)
	if err := idx.bp.UnpinPage(idx.file, rightId, true); err != nil {
		return pendingSplit[K]{}, fmt.Errorf("btreeidx: unpin leaf sibling %d: %w", rightId, err)
	}

	lv.setRightSib(rightId)
	writeLeafEntries(lv, left)

	_ = leafId
	return pendingSplit[K]{key: left[len(left)-1].key, right: rightId}, nil
}

// propagateSplit walks the descent stack bottom-up, inserting split's
// (separator, newChild) pair into each parent in turn, splitting that
// parent again if it overflows, until the split is absorbed or the stack
// is exhausted (in which case a new root is grown).
func propagateSplit[K any](idx *Index, ops keyOps[K], stack []stackFrame, split pendingSplit[K]) error {
	for i := len(stack) - 1; i >= 0; i-- {
		frame := stack[i]
		buf, err := idx.bp.ReadPage(idx.file, frame.pageId)
		if err != nil {
			return fmt.Errorf("btreeidx: read parent %d: %w", frame.pageId, err)
		}
		nv := newNonLeafView(ops, idx.nonLeafCap, buf)
		children := readChildEntries(nv)
		children = insertChildEntry(children, frame.childIdx+1, childEntry[K]{key: split.key, child: split.right})

		if len(children)-1 <= idx.nonLeafCap {
			writeChildEntries(nv, children)
			return idx.bp.UnpinPage(idx.file, frame.pageId, true)
		}

		next, err := splitNonLeaf(idx, ops, nv, children)
		if err != nil {
			idx.bp.UnpinPage(idx.file, frame.pageId, false)
			return err
		}
		if err := idx.bp.UnpinPage(idx.file, frame.pageId, true); err != nil {
			return fmt.Errorf("btreeidx: unpin parent %d after split: %w", frame.pageId, err)
		}
		split = next
	}

	return growRoot(idx, ops, split)
}

// readChildEntries flattens a non-leaf page into numKeys()+1 childEntry
// values; entry 0's key is a zero value and never consulted (child 0
// covers everything up to keys[0]).
func readChildEntries[K any](nv nonLeafView[K]) []childEntry[K] {
	n := nv.numKeys()
	out := make([]childEntry[K], n+1)
	out[0] = childEntry[K]{child: nv.childAt(0)}
	for i := 0; i < n; i++ {
		out[i+1] = childEntry[K]{key: nv.keyAt(i), child: nv.childAt(i + 1)}
	}
	return out
}

func writeChildEntries[K any](nv nonLeafView[K], children []childEntry[K]) {
	nv.setNumKeys(len(children) - 1)
	nv.setChildAt(0, children[0].child)
	for i := 1; i < len(children); i++ {
		nv.setKeyAt(i-1, children[i].key)
		nv.setChildAt(i, children[i].child)
	}
}

// insertChildEntry inserts e as the child at position pos (pos is always
// >= 1: child 0 never changes as a result of a split).
func insertChildEntry[K any](children []childEntry[K], pos int, e childEntry[K]) []childEntry[K] {
	children = append(children, childEntry[K]{})
	copy(children[pos+1:], children[pos:])
	children[pos] = e
	return children
}

// splitNonLeaf divides children (one past capacity) between the existing
// non-leaf page and a freshly allocated sibling at the same level. The
// middle separator is promoted (moved, not copied) to the parent, per the
// classic B+-tree internal-node split.
func splitNonLeaf[K any](idx *Index, ops keyOps[K], nv nonLeafView[K], children []childEntry[K]) (pendingSplit[K], error) {
	mid := len(children)/2 + 1
	left, midEntry, right := children[:mid], children[mid], children[mid:]
	right = append([]childEntry[K]{{child: right[0].child}}, right[1:]...)

	rightId, rightBuf, err := idx.bp.AllocPage(idx.file)
	if err != nil {
		return pendingSplit[K]{}, fmt.Errorf("btreeidx: alloc non-leaf sibling: %w", err)
	}
	initNonLeaf(rightBuf, nv.level())
	rightView := newNonLeafView(ops, idx.nonLeafCap, rightBuf)
	writeChildEntries(rightView, right)
	if err := idx.bp.UnpinPage(idx.file, rightId, true); err != nil {
		return pendingSplit[K]{}, fmt.Errorf("btreeidx: unpin non-leaf sibling %d: %w", rightId, err)
	}

	writeChildEntries(nv, left)
	return pendingSplit[K]{key: midEntry.key, right: rightId}, nil
}

// growRoot is called when a split has propagated past the top of the
// stack: the current root itself just split (in place, at its original
// page id) and needs a brand-new parent above it.
func growRoot[K any](idx *Index, ops keyOps[K], split pendingSplit[K]) error {
	oldRootId := idx.rootPageNo
	oldRootBuf, err := idx.bp.ReadPage(idx.file, oldRootId)
	if err != nil {
		return fmt.Errorf("btreeidx: read old root %d: %w", oldRootId, err)
	}
	var newLevel uint8 // 0: children are non-leaves
	if pageKind(oldRootBuf) == nodeKindLeaf {
		newLevel = 1 // children are leaves
	}
	if err := idx.bp.UnpinPage(idx.file, oldRootId, false); err != nil {
		return fmt.Errorf("btreeidx: unpin old root %d: %w", oldRootId, err)
	}

	newRootId, newRootBuf, err := idx.bp.AllocPage(idx.file)
	if err != nil {
		return fmt.Errorf("btreeidx: alloc new root: %w", err)
	}
	initNonLeaf(newRootBuf, newLevel)
	nv := newNonLeafView(ops, idx.nonLeafCap, newRootBuf)
	writeChildEntries(nv, []childEntry[K]{
		{child: oldRootId},
		{key: split.key, child: split.right},
	})
	if err := idx.bp.UnpinPage(idx.file, newRootId, true); err != nil {
		return fmt.Errorf("btreeidx: unpin new root %d: %w", newRootId, err)
	}

	return idx.setRoot(newRootId)
}
