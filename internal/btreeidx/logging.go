package btreeidx

import (
	"log"
	"os"
)

// indexLogger is the package's diagnostic logger, in the plain stdlib
// *log.Logger style this corpus uses elsewhere for background subsystems
// (no structured fields, just prefixed lines to stderr). The prefix
// carries buildID so log lines from concurrent processes indexing the
// same relation can be told apart.
var indexLogger = log.New(os.Stderr, "btreeidx["+buildID[:8]+"]: ", log.LstdFlags)
