package btreeidx

import (
	"encoding/binary"

	"github.com/dbforge/btreeidx/internal/bufmgr"
)

// nodeKind is the one-byte discriminator spec.md §9 prescribes in place
// of inferring "is this the root leaf?" from a page number: every node
// page begins with this byte, so descent and root-detection logic reads
// the node, never a cached assumption about page 2.
type nodeKind uint8

const (
	nodeKindLeaf    nodeKind = 1
	nodeKindNonLeaf nodeKind = 2
)

const (
	// leafHeaderSize: kind(1) + pad(3) + numKeys(4) + rightSibPageNo(4).
	leafHeaderSize = 12

	// nonLeafHeaderSize: kind(1) + level(1) + pad(2) + numKeys(4).
	nonLeafHeaderSize = 8

	ridSize    = 6 // PageId (4) + SlotId (2)
	pageIdSize = 4
)

func pageKind(p bufmgr.Page) nodeKind { return nodeKind(p[0]) }

// leafCapacity returns L, the max number of (key, rid) entries a leaf of
// the given page size can hold for a key of width w, per spec.md §3's
// fanout formula (generalized to this layout's header size).
func leafCapacity(pageSize, w int) int {
	return (pageSize - leafHeaderSize) / (w + ridSize)
}

// nonLeafCapacity returns N, the max number of routing keys a non-leaf of
// the given page size can hold for a key of width w (it therefore holds
// up to N+1 child pointers), per spec.md §3's fanout formula.
func nonLeafCapacity(pageSize, w int) int {
	return (pageSize - nonLeafHeaderSize - pageIdSize) / (w + pageIdSize)
}

// ── Leaf node accessors ─────────────────────────────────────────────────

type leafView[K any] struct {
	ops keyOps[K]
	cap int
	buf bufmgr.Page
}

func newLeafView[K any](ops keyOps[K], cap int, buf bufmgr.Page) leafView[K] {
	return leafView[K]{ops: ops, cap: cap, buf: buf}
}

func initLeaf(buf bufmgr.Page, rightSib bufmgr.PageId) {
	buf[0] = byte(nodeKindLeaf)
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(rightSib))
}

func (lv leafView[K]) numKeys() int {
	return int(binary.LittleEndian.Uint32(lv.buf[4:8]))
}

func (lv leafView[K]) setNumKeys(n int) {
	binary.LittleEndian.PutUint32(lv.buf[4:8], uint32(n))
}

func (lv leafView[K]) rightSib() bufmgr.PageId {
	return bufmgr.PageId(binary.LittleEndian.Uint32(lv.buf[8:12]))
}

func (lv leafView[K]) setRightSib(id bufmgr.PageId) {
	binary.LittleEndian.PutUint32(lv.buf[8:12], uint32(id))
}

func (lv leafView[K]) entryOffset(i int) int {
	return leafHeaderSize + i*(lv.ops.size+ridSize)
}

func (lv leafView[K]) keyAt(i int) K {
	off := lv.entryOffset(i)
	return lv.ops.decode(lv.buf[off : off+lv.ops.size])
}

func (lv leafView[K]) ridAt(i int) bufmgr.RecordId {
	off := lv.entryOffset(i) + lv.ops.size
	return bufmgr.RecordId{
		PageId: bufmgr.PageId(binary.LittleEndian.Uint32(lv.buf[off : off+4])),
		SlotId: binary.LittleEndian.Uint16(lv.buf[off+4 : off+6]),
	}
}

func (lv leafView[K]) setEntry(i int, k K, rid bufmgr.RecordId) {
	off := lv.entryOffset(i)
	lv.ops.encode(k, lv.buf[off:off+lv.ops.size])
	off += lv.ops.size
	binary.LittleEndian.PutUint32(lv.buf[off:off+4], uint32(rid.PageId))
	binary.LittleEndian.PutUint16(lv.buf[off+4:off+6], rid.SlotId)
}

// ── Non-leaf node accessors ─────────────────────────────────────────────

type nonLeafView[K any] struct {
	ops keyOps[K]
	cap int
	buf bufmgr.Page
}

func newNonLeafView[K any](ops keyOps[K], cap int, buf bufmgr.Page) nonLeafView[K] {
	return nonLeafView[K]{ops: ops, cap: cap, buf: buf}
}

// level 1 means "children are leaves"; level 0 means "children are
// non-leaves". This fixes spec.md §9's ambiguity between insert's and
// startScan's disagreeing conventions in the observed source.
func initNonLeaf(buf bufmgr.Page, level uint8) {
	buf[0] = byte(nodeKindNonLeaf)
	buf[1] = level
	binary.LittleEndian.PutUint32(buf[4:8], 0)
}

func (nv nonLeafView[K]) level() uint8 { return nv.buf[1] }

func (nv nonLeafView[K]) numKeys() int {
	return int(binary.LittleEndian.Uint32(nv.buf[4:8]))
}

func (nv nonLeafView[K]) setNumKeys(n int) {
	binary.LittleEndian.PutUint32(nv.buf[4:8], uint32(n))
}

func (nv nonLeafView[K]) childOffset(i int) int {
	return nonLeafHeaderSize + i*pageIdSize
}

func (nv nonLeafView[K]) keyOffset(i int) int {
	return nonLeafHeaderSize + (nv.cap+1)*pageIdSize + i*nv.ops.size
}

func (nv nonLeafView[K]) childAt(i int) bufmgr.PageId {
	off := nv.childOffset(i)
	return bufmgr.PageId(binary.LittleEndian.Uint32(nv.buf[off : off+4]))
}

func (nv nonLeafView[K]) setChildAt(i int, id bufmgr.PageId) {
	off := nv.childOffset(i)
	binary.LittleEndian.PutUint32(nv.buf[off:off+4], uint32(id))
}

func (nv nonLeafView[K]) keyAt(i int) K {
	off := nv.keyOffset(i)
	return nv.ops.decode(nv.buf[off : off+nv.ops.size])
}

func (nv nonLeafView[K]) setKeyAt(i int, k K) {
	off := nv.keyOffset(i)
	nv.ops.encode(k, nv.buf[off:off+nv.ops.size])
}
