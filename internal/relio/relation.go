// Package relio implements the relation file and sequential scanner that
// spec.md §6 lists as an external collaborator: fixed-layout records
// packed into pages, read back in page/slot order. It is grounded in
// tinySQL's binary row codec (internal/storage/pager/row_codec.go) and
// page-header conventions, simplified to a single static record layout
// per relation (no per-row type tags) to match spec.md's "fixed-layout
// records of a base relation".
package relio

import (
	"encoding/binary"
	"fmt"

	"github.com/dbforge/btreeidx/internal/bufmgr"
)

// pageHeaderSize is the 4-byte record count prefixing every relation
// page; records are packed back-to-back after it.
const pageHeaderSize = 4

// Relation is an append-only heap file of fixed-width records, backed by
// a bufmgr.PagedFile and read/written exclusively through a BufMgr so it
// obeys the same pin discipline as the index itself.
type Relation struct {
	name           string
	file           bufmgr.PagedFile
	bp             bufmgr.BufMgr
	recordSize     int
	recordsPerPage int
	curPageId      bufmgr.PageId
}

func recordsPerPage(pageSize, recordSize int) int {
	return (pageSize - pageHeaderSize) / recordSize
}

// CreateRelation creates a brand-new, empty relation file whose pages are
// pageSize bytes.
func CreateRelation(bp bufmgr.BufMgr, name string, pageSize, recordSize int) (*Relation, error) {
	if recordSize <= 0 || recordSize > pageSize-pageHeaderSize {
		return nil, fmt.Errorf("relio: invalid record size %d for page size %d", recordSize, pageSize)
	}
	f, err := bufmgr.CreateFile(name, pageSize)
	if err != nil {
		return nil, err
	}
	return &Relation{
		name:           name,
		file:           f,
		bp:             bp,
		recordSize:     recordSize,
		recordsPerPage: recordsPerPage(pageSize, recordSize),
	}, nil
}

// OpenRelation opens an existing relation file whose pages are pageSize
// bytes.
func OpenRelation(bp bufmgr.BufMgr, name string, pageSize, recordSize int) (*Relation, error) {
	if recordSize <= 0 || recordSize > pageSize-pageHeaderSize {
		return nil, fmt.Errorf("relio: invalid record size %d for page size %d", recordSize, pageSize)
	}
	f, err := bufmgr.OpenFile(name, pageSize)
	if err != nil {
		return nil, err
	}
	r := &Relation{
		name:           name,
		file:           f,
		bp:             bp,
		recordSize:     recordSize,
		recordsPerPage: recordsPerPage(pageSize, recordSize),
	}
	if n := f.PageCount(); n > 0 {
		r.curPageId = bufmgr.PageId(n)
	}
	return r, nil
}

// File exposes the underlying PagedFile, e.g. for Scanner construction.
func (r *Relation) File() bufmgr.PagedFile { return r.file }

// RecordSize returns the relation's fixed record width in bytes.
func (r *Relation) RecordSize() int { return r.recordSize }

func pageCount(buf bufmgr.Page) uint32 {
	return binary.LittleEndian.Uint32(buf[0:4])
}

func setPageCount(buf bufmgr.Page, n uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], n)
}

func slotOffset(recordSize int, slot uint16) int {
	return pageHeaderSize + int(slot)*recordSize
}

// AppendRecord writes data (which must be exactly RecordSize() bytes) to
// the relation, allocating a new page once the current page is full, and
// returns the record's locator.
func (r *Relation) AppendRecord(data []byte) (bufmgr.RecordId, error) {
	if len(data) != r.recordSize {
		return bufmgr.RecordId{}, ErrRecordSize
	}

	if r.curPageId == bufmgr.InvalidPageId {
		if err := r.allocNewPage(); err != nil {
			return bufmgr.RecordId{}, err
		}
	}

	page, err := r.bp.ReadPage(r.file, r.curPageId)
	if err != nil {
		return bufmgr.RecordId{}, err
	}
	n := pageCount(page)
	if int(n) >= r.recordsPerPage {
		if err := r.bp.UnpinPage(r.file, r.curPageId, false); err != nil {
			return bufmgr.RecordId{}, err
		}
		if err := r.allocNewPage(); err != nil {
			return bufmgr.RecordId{}, err
		}
		page, err = r.bp.ReadPage(r.file, r.curPageId)
		if err != nil {
			return bufmgr.RecordId{}, err
		}
		n = 0
	}

	off := slotOffset(r.recordSize, uint16(n))
	copy(page[off:off+r.recordSize], data)
	setPageCount(page, n+1)
	if err := r.bp.UnpinPage(r.file, r.curPageId, true); err != nil {
		return bufmgr.RecordId{}, err
	}

	return bufmgr.RecordId{PageId: r.curPageId, SlotId: uint16(n)}, nil
}

func (r *Relation) allocNewPage() error {
	id, page, err := r.bp.AllocPage(r.file)
	if err != nil {
		return err
	}
	setPageCount(page, 0)
	if err := r.bp.UnpinPage(r.file, id, true); err != nil {
		return err
	}
	r.curPageId = id
	return nil
}

// Close flushes and releases the relation's underlying file.
func (r *Relation) Close() error {
	if err := r.bp.FlushFile(r.file); err != nil {
		return err
	}
	return r.file.Close()
}
