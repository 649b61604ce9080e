package btreeidx

import "errors"

// Error taxonomy per spec.md §7. Every kind is a package-level sentinel,
// in the style of askorykh-goDB's btree.ErrBadPage and
// ajg7-GengarDB's index.ErrNotFound/ErrCorruption — callers compare with
// errors.Is, and internal plumbing wraps these with fmt.Errorf("...: %w")
// for positional context without losing the sentinel identity.
var (
	// ErrBadIndexInfo is returned by Open when an existing index file's
	// stored meta header disagrees with the (relationName, attrByteOffset,
	// attrType) the caller supplied.
	ErrBadIndexInfo = errors.New("btreeidx: existing index header does not match constructor arguments")

	// ErrBadOpcodes is returned by StartScan when lowOp is not one of
	// {GT, GTE} or highOp is not one of {LT, LTE}.
	ErrBadOpcodes = errors.New("btreeidx: scan bounds must use GT/GTE on the low end and LT/LTE on the high end")

	// ErrBadScanRange is returned by StartScan when lowVal > highVal.
	ErrBadScanRange = errors.New("btreeidx: low bound exceeds high bound")

	// ErrNoSuchKeyFound is returned by StartScan when no key in the tree
	// satisfies the requested lower bound.
	ErrNoSuchKeyFound = errors.New("btreeidx: no key found satisfying the scan's lower bound")

	// ErrScanNotInitialized is returned by ScanNext/EndScan when no scan
	// is currently executing.
	ErrScanNotInitialized = errors.New("btreeidx: no scan is currently executing")

	// ErrIndexScanCompleted is returned by ScanNext once the cursor has
	// passed the last entry satisfying the scan's upper bound.
	ErrIndexScanCompleted = errors.New("btreeidx: scan has returned every entry in range")
)
