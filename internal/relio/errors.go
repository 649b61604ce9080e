package relio

import "errors"

// EndOfFile is returned by Scanner.ScanNext once every record in the
// relation has been returned. spec.md §7 treats this as the expected,
// swallowed signal that terminates bootstrap.
var EndOfFile = errors.New("relio: end of file")

// ErrRecordSize is returned when a record written to a relation does not
// match the relation's fixed record width.
var ErrRecordSize = errors.New("relio: record does not match relation's fixed width")
