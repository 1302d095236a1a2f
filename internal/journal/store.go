package journal

import (
	"bufio"
	"encoding/binary"
	"os"
	"sync"
)

const (
	// number of bytes used to store the entry's length
	lenWidth = 8
)

var enc = binary.BigEndian

// wrapper API to append to and read from a segment's store file
type store struct {
	*os.File
	mu sync.Mutex
	// buffered writer to reduce the number of disk writes
	buf  *bufio.Writer
	size uint64
}

func newStore(f *os.File) (*store, error) {
	fi, err := os.Stat(f.Name())
	if err != nil {
		return nil, err
	}

	return &store{
		File: f,
		size: uint64(fi.Size()),
		buf:  bufio.NewWriter(f),
	}, nil
}

// persists the given bytes, length-prefixed, and returns the number of bytes
// written and the position the record starts at
func (s *store) Append(p []byte) (n uint64, pos uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos = s.size

	err = binary.Write(s.buf, enc, uint64(len(p)))
	if err != nil {
		return 0, 0, err
	}

	w, err := s.buf.Write(p)
	if err != nil {
		return 0, 0, err
	}

	w += lenWidth
	s.size += uint64(w)
	return uint64(w), pos, nil
}

// returns the record stored at the given position
func (s *store) ReadAt(pos uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// flush buffered data to the file first
	if err := s.buf.Flush(); err != nil {
		return nil, err
	}

	length := make([]byte, lenWidth)
	if _, err := s.File.ReadAt(length, int64(pos)); err != nil {
		return nil, err
	}

	b := make([]byte, enc.Uint64(length))
	if _, err := s.File.ReadAt(b, int64(pos+lenWidth)); err != nil {
		return nil, err
	}

	return b, nil
}

// Close makes sure we persist buffered data before closing the file
func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.buf.Flush()
	if err != nil {
		return err
	}

	return s.File.Close()
}
