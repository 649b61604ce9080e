package btreeidx

import "github.com/google/uuid"

// buildID tags a process's index activity for log correlation. It is
// generated once per process and never persisted to disk.
var buildID = uuid.NewString()

// BuildID returns the process-lifetime id tagging this index's log lines,
// letting an operator correlate a bulk load with its log output. It is
// the same value for every Index in this process and is never written to
// the meta page.
func (idx *Index) BuildID() string { return buildID }
