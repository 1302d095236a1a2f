package journal

import (
	"io"
	"os"

	"github.com/tysontate/gommap"
)

var (
	// width of an entry's offset in the index
	offWidth uint64 = 4
	// width of an entry's position in the store
	posWidth uint64 = 8
	// used to jump straight to the position of an entry given its offset
	entryWidth = offWidth + posWidth
)

// memory-mapped index from entry offsets to store positions
type index struct {
	file *os.File
	mmap gommap.MMap
	// size of the index and where the next entry is appended
	size uint64
}

func newIndex(f *os.File, c Config) (*index, error) {
	idx := &index{
		file: f,
	}

	fi, err := os.Stat(f.Name())
	if err != nil {
		return nil, err
	}
	idx.size = uint64(fi.Size())

	// grow the file to its max size before mapping it; memory-mapped files
	// cannot be resized afterwards
	err = os.Truncate(f.Name(), int64(c.Segment.MaxIndexBytes))
	if err != nil {
		return nil, err
	}

	idx.mmap, err = gommap.Map(
		idx.file.Fd(),
		gommap.PROT_READ|gommap.PROT_WRITE,
		gommap.MAP_SHARED,
	)
	if err != nil {
		return nil, err
	}

	return idx, nil
}

func (i *index) Close() error {
	// sync the map to the file, the file to stable storage, then shrink the
	// file back to the data it actually holds
	err := i.mmap.Sync(gommap.MS_SYNC)
	if err != nil {
		return err
	}

	err = i.file.Sync()
	if err != nil {
		return err
	}

	err = i.file.Truncate(int64(i.size))
	if err != nil {
		return err
	}

	return i.file.Close()
}

// Read takes an offset relative to the segment's base offset and returns the
// matching entry's relative offset and its position in the store.
// Passing -1 reads the last entry.
func (i *index) Read(in int64) (out uint32, pos uint64, err error) {
	if i.size == 0 {
		return 0, 0, io.EOF
	}

	var indexOffset uint32
	if in == -1 {
		indexOffset = uint32((i.size / entryWidth) - 1)
	} else {
		indexOffset = uint32(in)
	}

	indexPos := uint64(indexOffset) * entryWidth
	if i.size < indexPos+entryWidth {
		return 0, 0, io.EOF
	}

	out = enc.Uint32(i.mmap[indexPos : indexPos+offWidth])
	pos = enc.Uint64(i.mmap[indexPos+offWidth : indexPos+entryWidth])

	return out, pos, nil
}

// appends the given offset and position to the index
func (i *index) Write(off uint32, pos uint64) error {
	// make sure we have space for the entry
	if uint64(len(i.mmap)) < i.size+entryWidth {
		return io.EOF
	}

	enc.PutUint32(i.mmap[i.size:i.size+offWidth], off)
	enc.PutUint64(i.mmap[i.size+offWidth:i.size+entryWidth], pos)

	i.size += entryWidth

	return nil
}

func (i *index) Name() string {
	return i.file.Name()
}
