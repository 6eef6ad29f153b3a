// Package pager implements the page manager: it maps page IDs to file
// offsets in a single data file and allocates new page IDs.
package pager

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nainya/miniql/internal/dberr"
	"github.com/nainya/miniql/internal/page"
	"github.com/nainya/miniql/internal/logger"
)

const (
	magic          = "MINIQLV1"
	fileHeaderSize = 32 // magic(8) + pageSize(4) + rootPageID(8) + nextFreeID(8) + reserved(4)
)

// Pager owns the data file descriptor and translates page IDs to offsets.
// offset = fileHeaderSize + id*page.Size.
type Pager struct {
	mu   sync.Mutex
	path string
	fd   *os.File
	log  *logger.Logger

	pageSize   int
	rootPageID page.ID
	nextFreeID page.ID
}

// Open opens (creating if necessary) the data file at path.
func Open(path string, log *logger.Logger) (*Pager, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, dberr.Wrap(dberr.StorageFailure, "open data file", err)
	}

	p := &Pager{path: path, fd: fd, log: log, pageSize: page.Size, nextFreeID: 1}

	stat, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, dberr.Wrap(dberr.StorageFailure, "stat data file", err)
	}

	if stat.Size() == 0 {
		if err := p.writeHeaderLocked(); err != nil {
			fd.Close()
			return nil, err
		}
		if err := p.syncLocked(); err != nil {
			fd.Close()
			return nil, err
		}
	} else {
		if err := p.readHeaderLocked(); err != nil {
			fd.Close()
			return nil, err
		}
	}

	return p, nil
}

// RootPageID returns the persisted root page ID of the primary B-tree.
func (p *Pager) RootPageID() page.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rootPageID
}

// SetRootPageID persists a new root page ID in the file header.
func (p *Pager) SetRootPageID(id page.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rootPageID = id
	return p.writeHeaderLocked()
}

// ReadPage reads a page by ID. A read past the highest-allocated page (or a
// page never written) returns a zeroed page, per spec.
func (p *Pager) ReadPage(id page.ID) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := make([]byte, page.Size)
	off := p.offsetLocked(id)
	n, err := unix.Pread(int(p.fd.Fd()), buf, off)
	if err != nil {
		return nil, dberr.Wrap(dberr.StorageFailure, fmt.Sprintf("read page %d", id), err)
	}
	if n < page.Size {
		// short read at EOF: treat as a zeroed, never-written page.
		return page.Decode(id, make([]byte, page.Size))
	}

	pg, err := page.Decode(id, buf)
	if err != nil {
		if p.log != nil {
			p.log.Error("page checksum mismatch").Uint64("page_id", uint64(id)).Send()
		}
		return nil, dberr.Wrap(dberr.StorageFailure, fmt.Sprintf("decode page %d", id), err)
	}
	return pg, nil
}

// WritePage writes a page at its own ID's offset.
func (p *Pager) WritePage(pg *page.Page) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writePageLocked(pg)
}

func (p *Pager) writePageLocked(pg *page.Page) error {
	off := p.offsetLocked(pg.ID)
	buf := pg.Encode()
	if _, err := unix.Pwrite(int(p.fd.Fd()), buf, off); err != nil {
		return dberr.Wrap(dberr.StorageFailure, fmt.Sprintf("write page %d", pg.ID), err)
	}
	return nil
}

// Allocate reserves and returns a fresh page ID, bumping the persisted
// next-free counter.
func (p *Pager) Allocate() (page.ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextFreeID
	p.nextFreeID++
	if err := p.writeHeaderLocked(); err != nil {
		return 0, err
	}
	return id, nil
}

// Sync forces the OS to commit all writes to the data file to stable
// storage.
func (p *Pager) Sync() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.syncLocked()
}

func (p *Pager) syncLocked() error {
	if err := unix.Fsync(int(p.fd.Fd())); err != nil {
		return dberr.Wrap(dberr.StorageFailure, "fsync data file", err)
	}
	return nil
}

// Close releases the file descriptor.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fd.Close()
}

func (p *Pager) offsetLocked(id page.ID) int64 {
	return int64(fileHeaderSize) + int64(id)*int64(page.Size)
}

func (p *Pager) writeHeaderLocked() error {
	buf := make([]byte, fileHeaderSize)
	copy(buf[0:8], []byte(magic))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.pageSize))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(p.rootPageID))
	binary.LittleEndian.PutUint64(buf[20:28], uint64(p.nextFreeID))
	if _, err := unix.Pwrite(int(p.fd.Fd()), buf, 0); err != nil {
		return dberr.Wrap(dberr.StorageFailure, "write file header", err)
	}
	return nil
}

func (p *Pager) readHeaderLocked() error {
	buf := make([]byte, fileHeaderSize)
	if _, err := unix.Pread(int(p.fd.Fd()), buf, 0); err != nil {
		return dberr.Wrap(dberr.StorageFailure, "read file header", err)
	}
	if string(buf[0:8]) != magic {
		return dberr.Newf(dberr.StorageFailure, "bad data file signature %q", buf[0:8])
	}
	p.pageSize = int(binary.LittleEndian.Uint32(buf[8:12]))
	p.rootPageID = page.ID(binary.LittleEndian.Uint64(buf[12:20]))
	p.nextFreeID = page.ID(binary.LittleEndian.Uint64(buf[20:28]))
	return nil
}
