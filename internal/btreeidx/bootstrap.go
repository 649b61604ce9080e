package btreeidx

import (
	"errors"
	"fmt"

	"github.com/dbforge/btreeidx/internal/relio"
)

// bootstrap populates a freshly created, empty index by scanning rel
// record by record and inserting one entry per record, reading the key
// out of each record at idx.attrByteOffset, per spec.md §4.4.
func (idx *Index) bootstrap(rel *relio.Relation) error {
	sc := relio.NewScanner(rel)
	defer sc.Close()

	count := 0
	for {
		rid, err := sc.ScanNext()
		if errors.Is(err, relio.EndOfFile) {
			break
		}
		if err != nil {
			return fmt.Errorf("btreeidx: bootstrap scan: %w", err)
		}

		key, err := extractKey(idx.attrType, sc.GetRecord(), idx.attrByteOffset)
		if err != nil {
			return fmt.Errorf("btreeidx: bootstrap record %d: %w", count, err)
		}
		if err := idx.InsertEntry(key, rid); err != nil {
			return fmt.Errorf("btreeidx: bootstrap record %d: %w", count, err)
		}
		count++
	}

	indexLogger.Printf("bootstrap %s.%d: indexed %d records", idx.relationName, idx.attrByteOffset, count)
	return nil
}

// extractKey decodes the attribute at byte offset off out of a fixed-
// layout record, according to attrType's width and encoding.
func extractKey(attrType AttrType, record []byte, off int32) (any, error) {
	w := keyWidth(attrType)
	if off < 0 || int(off)+w > len(record) {
		return nil, fmt.Errorf("btreeidx: attribute offset %d (width %d) out of bounds for a %d-byte record", off, w, len(record))
	}
	field := record[off : int(off)+w]
	switch attrType {
	case AttrInt32:
		return int32Ops().decode(field), nil
	case AttrFloat64:
		return float64Ops().decode(field), nil
	case AttrString10:
		return str10Ops().decode(field), nil
	default:
		return nil, fmt.Errorf("btreeidx: %w", ErrBadIndexInfo)
	}
}
