package bufmgr

import (
	"fmt"
	"io"
	"os"
)

// PagedFile is the on-disk file abstraction the buffer manager reads and
// writes whole pages through. Implementations need not be safe for
// concurrent use — per spec.md §5, the buffer manager is assumed
// externally serialised by the caller.
type PagedFile interface {
	// Name returns the file's path, used in the buffer manager's error
	// messages.
	Name() string

	// PageSize returns this file's fixed page size in bytes.
	PageSize() int

	// ReadPageAt reads the page at id into buf, which must be exactly
	// PageSize() bytes. Reading past the current page count is an error.
	ReadPageAt(id PageId, buf []byte) error

	// WritePageAt writes buf (exactly PageSize() bytes) to the page at id.
	WritePageAt(id PageId, buf []byte) error

	// AllocatePageId reserves and returns the next page id, growing the
	// file's logical page count. The caller is responsible for writing
	// the page's initial bytes.
	AllocatePageId() PageId

	// PageCount returns the number of pages currently allocated.
	PageCount() uint32

	// Sync flushes any OS-level buffering to stable storage.
	Sync() error

	// Close releases the underlying file handle.
	Close() error
}

// osPagedFile is a PagedFile backed by a single os.File containing
// back-to-back fixed-size pages with no file header: page id 1 begins at
// byte 0, and id 0 (InvalidPageId) is never read or written.
type osPagedFile struct {
	name      string
	f         *os.File
	pageSize  int
	pageCount uint32
}

func validatePageSize(ps int) error {
	if ps < MinPageSize || ps > MaxPageSize {
		return fmt.Errorf("bufmgr: invalid page size %d (must be in [%d, %d])", ps, MinPageSize, MaxPageSize)
	}
	return nil
}

// OpenFile opens an existing paged file whose pages are pageSize bytes.
// It returns ErrFileNotFound if no file exists at name. pageSize must
// match the size the file was created with — it is a deployment
// constant, not discovered from the file.
func OpenFile(name string, pageSize int) (PagedFile, error) {
	if err := validatePageSize(pageSize); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(name, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("bufmgr: open %s: %w", name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bufmgr: stat %s: %w", name, err)
	}
	return &osPagedFile{
		name:      name,
		f:         f,
		pageSize:  pageSize,
		pageCount: uint32(fi.Size() / int64(pageSize)),
	}, nil
}

// CreateFile creates a brand-new, empty paged file with the given page
// size. It returns ErrFileExists if a file already exists at name.
func CreateFile(name string, pageSize int) (PagedFile, error) {
	if err := validatePageSize(pageSize); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrFileExists
		}
		return nil, fmt.Errorf("bufmgr: create %s: %w", name, err)
	}
	return &osPagedFile{name: name, f: f, pageSize: pageSize}, nil
}

// RemoveFile deletes the named paged file, if present. Used by rebuild
// paths that drop an existing index file before recreating it.
func RemoveFile(name string) error {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("bufmgr: remove %s: %w", name, err)
	}
	return nil
}

func (pf *osPagedFile) Name() string  { return pf.name }
func (pf *osPagedFile) PageSize() int { return pf.pageSize }

func (pf *osPagedFile) ReadPageAt(id PageId, buf []byte) error {
	if len(buf) != pf.pageSize {
		return fmt.Errorf("bufmgr: ReadPageAt: buf must be %d bytes, got %d", pf.pageSize, len(buf))
	}
	if id == InvalidPageId || uint32(id) > pf.pageCount {
		return fmt.Errorf("bufmgr: ReadPageAt: page %d out of range (count=%d)", id, pf.pageCount)
	}
	off := int64(id-1) * int64(pf.pageSize)
	if _, err := pf.f.ReadAt(buf, off); err != nil && err != io.EOF {
		return fmt.Errorf("bufmgr: read page %d of %s: %w", id, pf.name, err)
	}
	return nil
}

func (pf *osPagedFile) WritePageAt(id PageId, buf []byte) error {
	if len(buf) != pf.pageSize {
		return fmt.Errorf("bufmgr: WritePageAt: buf must be %d bytes, got %d", pf.pageSize, len(buf))
	}
	if id == InvalidPageId || uint32(id) > pf.pageCount {
		return fmt.Errorf("bufmgr: WritePageAt: page %d out of range (count=%d)", id, pf.pageCount)
	}
	off := int64(id-1) * int64(pf.pageSize)
	if _, err := pf.f.WriteAt(buf, off); err != nil {
		return fmt.Errorf("bufmgr: write page %d of %s: %w", id, pf.name, err)
	}
	return nil
}

func (pf *osPagedFile) AllocatePageId() PageId {
	pf.pageCount++
	return PageId(pf.pageCount)
}

func (pf *osPagedFile) PageCount() uint32 { return pf.pageCount }

func (pf *osPagedFile) Sync() error {
	if err := pf.f.Sync(); err != nil {
		return fmt.Errorf("bufmgr: sync %s: %w", pf.name, err)
	}
	return nil
}

func (pf *osPagedFile) Close() error {
	if err := pf.f.Close(); err != nil {
		return fmt.Errorf("bufmgr: close %s: %w", pf.name, err)
	}
	return nil
}
