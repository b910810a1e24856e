// Package disk implements the block-addressed file that backs every
// page in the storage core. It is deliberately narrow: ReadBlock and
// WriteBlock on fixed-size blocks, nothing else. The buffer pool, not
// the disk manager, owns page id allocation (spec: "AllocatePage is
// not delegated").
package disk

import (
	"errors"
	"io"
	"os"
	"strings"

	"coredb/pkg/page"

	"github.com/ncw/directio"
)

// BlockSize is the on-disk block size, aligned to the directio block
// size requirement of the underlying platform.
var BlockSize = directio.BlockSize

// Manager reads and writes fixed-size blocks of a single backing file.
// Safe for concurrent use: every call is a single pread/pwrite-style
// operation at a computed offset, so distinct page ids never race.
type Manager struct {
	file *os.File
}

// Open (re-)opens a database file at filePath, creating it (and any
// missing parent directories) if it doesn't already exist.
func Open(filePath string) (*Manager, error) {
	if idx := strings.LastIndex(filePath, "/"); idx != -1 {
		if err := os.MkdirAll(filePath[:idx], 0775); err != nil {
			return nil, err
		}
	}
	file, err := directio.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	return &Manager{file: file}, nil
}

// ReadBlock reads page.Size bytes for pageID into buf, which must be at
// least page.Size bytes long. Reading past the end of the file (a page
// that was allocated but never flushed) fills buf with zeroes; any other
// read error is returned.
func (m *Manager) ReadBlock(pageID int32, buf []byte) error {
	if pageID == page.InvalidID {
		return errors.New("disk: cannot read invalid page id")
	}
	off := int64(pageID) * int64(page.Size)
	n, err := m.file.ReadAt(buf[:page.Size], off)
	if err == io.EOF {
		// Newly allocated page that was never written: treat as a
		// zeroed page rather than an I/O error.
		for i := n; i < page.Size; i++ {
			buf[i] = 0
		}
		return nil
	}
	return err
}

// WriteBlock writes page.Size bytes from buf to pageID's block.
func (m *Manager) WriteBlock(pageID int32, buf []byte) error {
	if pageID == page.InvalidID {
		return errors.New("disk: cannot write invalid page id")
	}
	off := int64(pageID) * int64(page.Size)
	_, err := m.file.WriteAt(buf[:page.Size], off)
	return err
}

// Close flushes and closes the backing file.
func (m *Manager) Close() error {
	return m.file.Close()
}

// FileName returns the path of the backing file.
func (m *Manager) FileName() string {
	return m.file.Name()
}
