package bufmgr

import "errors"

var (
	// ErrFileNotFound is returned by OpenFile when the named file does not
	// exist. btreeidx.Open returns it (wrapped) when the index file is
	// missing; it does not create the index itself.
	ErrFileNotFound = errors.New("bufmgr: file not found")

	// ErrFileExists is returned by CreateFile when the named file already
	// exists.
	ErrFileExists = errors.New("bufmgr: file already exists")

	// ErrBadUnpin is returned by UnpinPage when the given page has no
	// outstanding pin on the given file.
	ErrBadUnpin = errors.New("bufmgr: unpin of a page with no pin")

	// ErrBufferPoolExhausted is returned by AllocPage/ReadPage when every
	// frame in the pool is pinned and none can be evicted to make room.
	ErrBufferPoolExhausted = errors.New("bufmgr: buffer pool exhausted, all frames pinned")
)
