/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reader.go
Description: Bounded byte readers for binary inputs. Provides the ByteReader
interface used by the record parser plus a file-backed implementation with a
small LRU page cache and an in-memory implementation for tests and buffers.
*/

package reader

import (
	"fmt"
	"os"
)

// DefaultPageSize is the page granularity for file-backed reads
const DefaultPageSize = 64 * 1024

// DefaultCachePages is the number of pages kept in the LRU cache
const DefaultCachePages = 16

// ByteReader is the read contract used by the record parser.
// Read returns the bytes in [offset, offset+length); it returns fewer bytes
// than requested only at end of input and never fails on EOF. Negative
// offsets or lengths are a caller bug and return an error.
type ByteReader interface {
	// Read returns up to length bytes starting at offset
	Read(offset int64, length int64) ([]byte, error)
	// Size returns the total input size in bytes
	Size() int64
}

// page holds one cached slice of the underlying file
type page struct {
	index int64
	data  []byte
}

// FileReader is a bounds-checked reader for large binary files.
// Reads go through a small LRU page cache; the full file is never loaded
// into memory at once.
type FileReader struct {
	path     string
	file     *os.File
	size     int64
	pageSize int64

	cacheLimit int
	cache      map[int64]*page
	cacheOrder []int64 // least-recent first
}

// NewFileReader opens a file for paged reading
func NewFileReader(path string) (*FileReader, error) {
	return NewFileReaderWith(path, DefaultPageSize, DefaultCachePages)
}

// NewFileReaderWith opens a file with explicit page size and cache limits
func NewFileReaderWith(path string, pageSize int64, cachePages int) (*FileReader, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	if cachePages <= 0 {
		return nil, fmt.Errorf("cache pages must be positive, got %d", cachePages)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat input file: %w", err)
	}

	return &FileReader{
		path:       path,
		file:       file,
		size:       stat.Size(),
		pageSize:   pageSize,
		cacheLimit: cachePages,
		cache:      make(map[int64]*page),
	}, nil
}

// Path returns the underlying file path
func (r *FileReader) Path() string {
	return r.path
}

// Size returns the file size in bytes
func (r *FileReader) Size() int64 {
	return r.size
}

// Close releases the underlying file handle
func (r *FileReader) Close() error {
	return r.file.Close()
}

// getPage fetches a page through the LRU cache
func (r *FileReader) getPage(index int64) (*page, error) {
	if p, ok := r.cache[index]; ok {
		r.touch(index)
		return p, nil
	}

	start := index * r.pageSize
	var data []byte
	if start < r.size {
		toRead := r.pageSize
		if start+toRead > r.size {
			toRead = r.size - start
		}
		data = make([]byte, toRead)
		if _, err := r.file.ReadAt(data, start); err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", index, err)
		}
	}

	p := &page{index: index, data: data}
	r.cache[index] = p
	r.cacheOrder = append(r.cacheOrder, index)

	// Evict least-recently used pages beyond the limit
	for len(r.cache) > r.cacheLimit {
		oldest := r.cacheOrder[0]
		r.cacheOrder = r.cacheOrder[1:]
		delete(r.cache, oldest)
	}

	return p, nil
}

// touch moves a cached page to most-recently used
func (r *FileReader) touch(index int64) {
	for i, idx := range r.cacheOrder {
		if idx == index {
			r.cacheOrder = append(r.cacheOrder[:i], r.cacheOrder[i+1:]...)
			r.cacheOrder = append(r.cacheOrder, index)
			return
		}
	}
}

// Read returns up to length bytes starting at offset.
// Reads past EOF are clamped; a read entirely past EOF returns empty.
func (r *FileReader) Read(offset int64, length int64) ([]byte, error) {
	if offset < 0 {
		return nil, fmt.Errorf("negative offset %d", offset)
	}
	if length < 0 {
		return nil, fmt.Errorf("negative length %d", length)
	}
	if length == 0 || offset >= r.size {
		return []byte{}, nil
	}

	end := offset + length
	if end > r.size {
		end = r.size
	}

	out := make([]byte, 0, end-offset)
	for pos := offset; pos < end; {
		p, err := r.getPage(pos / r.pageSize)
		if err != nil {
			return nil, err
		}
		inPage := pos - p.index*r.pageSize
		take := int64(len(p.data)) - inPage
		if take > end-pos {
			take = end - pos
		}
		if take <= 0 {
			break
		}
		out = append(out, p.data[inPage:inPage+take]...)
		pos += take
	}

	return out, nil
}

// BytesReader adapts an in-memory buffer to the ByteReader contract
type BytesReader struct {
	data []byte
}

// NewBytesReader wraps a byte slice as a ByteReader
func NewBytesReader(data []byte) *BytesReader {
	return &BytesReader{data: data}
}

// Size returns the buffer length
func (r *BytesReader) Size() int64 {
	return int64(len(r.data))
}

// Read returns up to length bytes starting at offset
func (r *BytesReader) Read(offset int64, length int64) ([]byte, error) {
	if offset < 0 {
		return nil, fmt.Errorf("negative offset %d", offset)
	}
	if length < 0 {
		return nil, fmt.Errorf("negative length %d", length)
	}
	if offset >= int64(len(r.data)) {
		return []byte{}, nil
	}
	end := offset + length
	if end > int64(len(r.data)) {
		end = int64(len(r.data))
	}
	out := make([]byte, end-offset)
	copy(out, r.data[offset:end])
	return out, nil
}
