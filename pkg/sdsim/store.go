package sdsim

import (
	"fmt"
	"io"
	"os"

	"github.com/gregLibert/sd-card/pkg/sdspi"
)

// Store is the medium behind a simulated card.
type Store interface {
	io.ReaderAt
	io.WriterAt
	// Sectors returns the size of the medium in 512-byte sectors.
	Sectors() uint64
}

// MemStore is a Store held in memory.
type MemStore struct {
	data []byte
}

// NewMemStore returns a zeroed store of the given size.
func NewMemStore(sectors uint64) *MemStore {
	return &MemStore{data: make([]byte, sectors*sdspi.BlockSize)}
}

func (m *MemStore) Sectors() uint64 {
	return uint64(len(m.data)) / sdspi.BlockSize
}

func (m *MemStore) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemStore) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("sdsim: write of %d bytes at %d beyond %d", len(p), off, len(m.data))
	}
	return copy(m.data[off:], p), nil
}

// Bytes exposes the backing slice.
func (m *MemStore) Bytes() []byte {
	return m.data
}

// Image is a Store backed by a raw disk image file.
type Image struct {
	*os.File
	sectors uint64
}

// OpenImage opens an existing image for reading and writing. A trailing
// partial sector is ignored.
func OpenImage(path string) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Image{File: f, sectors: uint64(st.Size()) / sdspi.BlockSize}, nil
}

// CreateImage creates (or truncates) a zero-filled image of the given size.
func CreateImage(path string, sectors uint64) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(sectors * sdspi.BlockSize)); err != nil {
		f.Close()
		return nil, err
	}
	return &Image{File: f, sectors: sectors}, nil
}

func (i *Image) Sectors() uint64 {
	return i.sectors
}
