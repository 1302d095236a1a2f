// Package journal provides an append-only, segmented audit log of the
// ledger operations the engine has committed. Each entry is written to a
// length-prefixed store file with a memory-mapped index alongside it, so
// entries can be looked up by offset after a restart.
package journal

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Config for the journal's segment sizing
type Config struct {
	Segment struct {
		// initial offset of the journal
		InitialOffset uint64
		// max size of a segment's store
		MaxStoreBytes uint64
		// max size of a segment's index
		MaxIndexBytes uint64
	}
}

// ErrOffsetOutOfRange is returned when reading an offset past the journal's end
type ErrOffsetOutOfRange struct {
	Offset uint64
}

func (e ErrOffsetOutOfRange) Error() string {
	return fmt.Sprintf("journal offset out of range: %d", e.Offset)
}

// Ordered, append-only journal backed by a directory of segments
type Journal struct {
	mu sync.RWMutex

	Dir    string
	Config Config

	// pointer to the active segment to append to
	activeSegment *segment
	// list of segments, oldest to newest
	segments []*segment
}

func NewJournal(dir string, c Config) (*Journal, error) {
	if c.Segment.MaxStoreBytes == 0 {
		c.Segment.MaxStoreBytes = 4096
	}
	if c.Segment.MaxIndexBytes == 0 {
		c.Segment.MaxIndexBytes = 4096
	}
	j := &Journal{
		Dir:    dir,
		Config: c,
	}

	// load existing segment files if they exist
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var baseOffsets []uint64
	for _, file := range files {
		offStr := strings.TrimSuffix(file.Name(), path.Ext(file.Name()))
		off, _ := strconv.ParseUint(offStr, 10, 0)
		baseOffsets = append(baseOffsets, off)
	}
	sort.Slice(baseOffsets, func(i, k int) bool {
		return baseOffsets[i] < baseOffsets[k]
	})
	for i := 0; i < len(baseOffsets); i++ {
		if err = j.newSegment(baseOffsets[i]); err != nil {
			return nil, err
		}
		// baseOffsets contains a dup for index and store so we skip the dup
		i++
	}
	if j.segments == nil {
		if err = j.newSegment(c.Segment.InitialOffset); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// Append the entry to the journal and return its offset
func (j *Journal) Append(entry *Entry) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	off, err := j.activeSegment.Append(entry)
	if err != nil {
		return 0, err
	}
	// if the segment is at its max size, allocate a new segment
	if j.activeSegment.IsMaxed() {
		err = j.newSegment(off + 1)
	}
	return off, err
}

// Read the entry at the given offset
func (j *Journal) Read(offset uint64) (*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var s *segment
	for _, segment := range j.segments {
		if segment.baseOffset <= offset && offset < segment.nextOffset {
			s = segment
			break
		}
	}

	if s == nil {
		return nil, ErrOffsetOutOfRange{Offset: offset}
	}
	return s.Read(offset)
}

func (j *Journal) LowestOffset() (uint64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.segments[0].baseOffset, nil
}

func (j *Journal) HighestOffset() (uint64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	off := j.segments[len(j.segments)-1].nextOffset
	if off == 0 {
		return 0, nil
	}
	return off - 1, nil
}

// Truncate removes every segment whose entries are all older than lowest,
// allowing the audit trail to be archived elsewhere and reclaimed
func (j *Journal) Truncate(lowest uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var segments []*segment
	for _, s := range j.segments {
		if s.nextOffset <= lowest+1 {
			if err := s.Remove(); err != nil {
				return err
			}
			continue
		}
		segments = append(segments, s)
	}
	j.segments = segments
	return nil
}

func (j *Journal) newSegment(off uint64) error {
	s, err := newSegment(j.Dir, off, j.Config)
	if err != nil {
		return err
	}
	j.segments = append(j.segments, s)
	j.activeSegment = s
	return nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, segment := range j.segments {
		if err := segment.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (j *Journal) Remove() error {
	if err := j.Close(); err != nil {
		return err
	}
	return os.RemoveAll(j.Dir)
}

// Returns an io.Reader to read the raw journal in offset order
func (j *Journal) Reader() io.Reader {
	j.mu.RLock()
	defer j.mu.RUnlock()
	readers := make([]io.Reader, len(j.segments))
	for i, segment := range j.segments {
		readers[i] = segment.store
	}
	return io.MultiReader(readers...)
}
