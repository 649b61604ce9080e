package relio

import "github.com/dbforge/btreeidx/internal/bufmgr"

// Scanner is a sequential, page-order reader over a Relation, matching
// the "relation scanner" interface spec.md §6 asks the index to consume:
// ScanNext advances the cursor and returns the next record's locator;
// GetRecord returns that record's bytes; EndOfFile signals exhaustion.
type Scanner struct {
	rel        *Relation
	pageCount  bufmgr.PageId
	curPage    bufmgr.PageId
	curSlot    uint16
	curPageBuf bufmgr.Page
	curLive    uint32 // number of live records on curPageBuf
	lastRecord []byte
}

// NewScanner opens a fresh sequential scan over rel, starting before the
// first record.
func NewScanner(rel *Relation) *Scanner {
	return &Scanner{
		rel:       rel,
		pageCount: bufmgr.PageId(rel.file.PageCount()),
		curPage:   0,
		curSlot:   0,
	}
}

// ScanNext advances to, and returns the locator of, the next record. It
// returns EndOfFile once every page has been exhausted.
func (s *Scanner) ScanNext() (bufmgr.RecordId, error) {
	for {
		if s.curPageBuf == nil {
			s.curPage++
			if s.curPage > s.pageCount {
				return bufmgr.RecordId{}, EndOfFile
			}
			page, err := s.rel.bp.ReadPage(s.rel.file, s.curPage)
			if err != nil {
				return bufmgr.RecordId{}, err
			}
			s.curPageBuf = page
			s.curLive = pageCount(page)
			s.curSlot = 0
		}

		if uint32(s.curSlot) >= s.curLive {
			if err := s.rel.bp.UnpinPage(s.rel.file, s.curPage, false); err != nil {
				return bufmgr.RecordId{}, err
			}
			s.curPageBuf = nil
			continue
		}

		off := slotOffset(s.rel.recordSize, s.curSlot)
		rid := bufmgr.RecordId{PageId: s.curPage, SlotId: s.curSlot}
		s.lastRecord = append(s.lastRecord[:0], s.curPageBuf[off:off+s.rel.recordSize]...)
		s.curSlot++
		return rid, nil
	}
}

// GetRecord returns the bytes of the record most recently returned by
// ScanNext.
func (s *Scanner) GetRecord() []byte { return s.lastRecord }

// Close releases any page the scanner still holds pinned. Safe to call
// after EndOfFile or at any earlier point to abandon the scan.
func (s *Scanner) Close() error {
	if s.curPageBuf != nil {
		err := s.rel.bp.UnpinPage(s.rel.file, s.curPage, false)
		s.curPageBuf = nil
		return err
	}
	return nil
}
