package btreeidx

import (
	"fmt"
	"path/filepath"

	"github.com/dbforge/btreeidx/internal/bufmgr"
	"github.com/dbforge/btreeidx/internal/relio"
)

// Index is a disk-resident B+-tree secondary index over one fixed-width
// attribute of one relation. Page 1 is always the meta page; every other
// page is either a leaf or a non-leaf node, tagged by the nodeKind byte at
// offset 0, per spec.md §3.
//
// Index is not safe for concurrent use by multiple goroutines.
type Index struct {
	relationName   string
	attrByteOffset int32
	attrType       AttrType

	file bufmgr.PagedFile
	bp   bufmgr.BufMgr

	pageSize   int
	keyWidth   int
	leafCap    int
	nonLeafCap int

	rootPageNo bufmgr.PageId

	scan *scanState
}

// Create builds a brand-new index file for relationName's attribute at
// attrByteOffset (of type attrType), bootstrapping it by scanning every
// record currently in rel and inserting one entry per record. dir is the
// directory the storage engine keeps this relation's files in; the index
// file itself is named deterministically within it, per spec.md §4.1.
//
// It fails with bufmgr.ErrFileExists if an index file by this name
// already exists.
func Create(bp bufmgr.BufMgr, rel *relio.Relation, dir, relationName string, attrByteOffset int32, attrType AttrType, pageSize int) (*Index, error) {
	if !attrType.Valid() {
		return nil, fmt.Errorf("btreeidx: create %s.%d: %w", relationName, attrByteOffset, ErrBadIndexInfo)
	}

	name := filepath.Join(dir, indexFileName(relationName, attrByteOffset))
	file, err := bufmgr.CreateFile(name, pageSize)
	if err != nil {
		return nil, fmt.Errorf("btreeidx: create %s: %w", name, err)
	}

	idx := &Index{
		relationName:   relationName,
		attrByteOffset: attrByteOffset,
		attrType:       attrType,
		file:           file,
		bp:             bp,
		pageSize:       pageSize,
		keyWidth:       keyWidth(attrType),
	}
	idx.leafCap = leafCapacity(pageSize, idx.keyWidth)
	idx.nonLeafCap = nonLeafCapacity(pageSize, idx.keyWidth)

	// Page 1: meta. Page 2: the initial, empty root leaf.
	metaId, metaPage, err := bp.AllocPage(file)
	if err != nil {
		return nil, fmt.Errorf("btreeidx: alloc meta page: %w", err)
	}
	if metaId != metaPageId {
		bp.UnpinPage(file, metaId, false)
		return nil, fmt.Errorf("btreeidx: expected meta page at id %d, got %d", metaPageId, metaId)
	}

	rootId, rootPage, err := bp.AllocPage(file)
	if err != nil {
		bp.UnpinPage(file, metaId, false)
		return nil, fmt.Errorf("btreeidx: alloc root page: %w", err)
	}
	initLeaf(rootPage, bufmgr.InvalidPageId)
	if err := bp.UnpinPage(file, rootId, true); err != nil {
		bp.UnpinPage(file, metaId, false)
		return nil, fmt.Errorf("btreeidx: unpin root page: %w", err)
	}

	idx.rootPageNo = rootId
	marshalMeta(metaPage, metaInfo{
		relationName:   relationName,
		attrByteOffset: attrByteOffset,
		attrType:       attrType,
		rootPageNo:     rootId,
	})
	if err := bp.UnpinPage(file, metaId, true); err != nil {
		return nil, fmt.Errorf("btreeidx: unpin meta page: %w", err)
	}

	if err := idx.bootstrap(rel); err != nil {
		return nil, fmt.Errorf("btreeidx: bootstrap %s: %w", name, err)
	}
	return idx, nil
}

// Open reopens an existing index file, verifying its stored meta header
// matches (relationName, attrByteOffset, attrType); ErrBadIndexInfo is
// returned on mismatch, per spec.md §7.
func Open(bp bufmgr.BufMgr, dir, relationName string, attrByteOffset int32, attrType AttrType, pageSize int) (*Index, error) {
	name := filepath.Join(dir, indexFileName(relationName, attrByteOffset))
	file, err := bufmgr.OpenFile(name, pageSize)
	if err != nil {
		return nil, fmt.Errorf("btreeidx: open %s: %w", name, err)
	}

	metaPage, err := bp.ReadPage(file, metaPageId)
	if err != nil {
		return nil, fmt.Errorf("btreeidx: read meta page of %s: %w", name, err)
	}
	m := unmarshalMeta(metaPage)
	if uerr := bp.UnpinPage(file, metaPageId, false); uerr != nil {
		return nil, fmt.Errorf("btreeidx: unpin meta page of %s: %w", name, uerr)
	}

	if m.relationName != relationName || m.attrByteOffset != attrByteOffset || m.attrType != attrType {
		return nil, fmt.Errorf("btreeidx: open %s: %w", name, ErrBadIndexInfo)
	}

	idx := &Index{
		relationName:   relationName,
		attrByteOffset: attrByteOffset,
		attrType:       attrType,
		file:           file,
		bp:             bp,
		pageSize:       pageSize,
		keyWidth:       keyWidth(attrType),
		rootPageNo:     m.rootPageNo,
	}
	idx.leafCap = leafCapacity(pageSize, idx.keyWidth)
	idx.nonLeafCap = nonLeafCapacity(pageSize, idx.keyWidth)
	return idx, nil
}

// Close ends any active scan, flushes every dirty page of the index back
// to disk, and releases the underlying file, per spec.md §5. Ending the
// scan first is required: FlushFile evicts every frame of idx.file
// regardless of pin state, and a scan's cursor otherwise leaves its
// current leaf pinned.
func (idx *Index) Close() error {
	if idx.scan != nil {
		if err := idx.EndScan(); err != nil {
			return fmt.Errorf("btreeidx: end scan before close: %w", err)
		}
	}
	if err := idx.bp.FlushFile(idx.file); err != nil {
		return fmt.Errorf("btreeidx: flush %s: %w", idx.file.Name(), err)
	}
	return idx.file.Close()
}

// RootPageNo reports the current root page, mainly for tests that need
// to assert on tree shape after a split.
func (idx *Index) RootPageNo() bufmgr.PageId { return idx.rootPageNo }

func (idx *Index) setRoot(id bufmgr.PageId) error {
	idx.rootPageNo = id
	metaPage, err := idx.bp.ReadPage(idx.file, metaPageId)
	if err != nil {
		return fmt.Errorf("btreeidx: read meta page: %w", err)
	}
	m := unmarshalMeta(metaPage)
	m.rootPageNo = id
	marshalMeta(metaPage, m)
	return idx.bp.UnpinPage(idx.file, metaPageId, true)
}
