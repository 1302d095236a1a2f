package journal

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndex(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "index_test")
	require.NoError(t, err)

	c := Config{}
	// room for exactly four entries
	c.Segment.MaxIndexBytes = entryWidth * 4

	idx, err := newIndex(f, c)
	require.NoError(t, err)
	require.Equal(t, f.Name(), idx.Name())

	// a fresh index has nothing to read, relative or last
	_, _, err = idx.Read(0)
	require.Equal(t, io.EOF, err)
	_, _, err = idx.Read(-1)
	require.Equal(t, io.EOF, err)

	// store positions as variable-size journal entries would produce them
	positions := []uint64{0, 157, 298, 502}
	for off, pos := range positions {
		require.NoError(t, idx.Write(uint32(off), pos))
	}

	for off, want := range positions {
		_, pos, err := idx.Read(int64(off))
		require.NoError(t, err)
		require.Equal(t, want, pos)
	}

	// a full index refuses further writes
	require.Equal(t, io.EOF, idx.Write(4, 710))

	// and reading past the written entries fails
	_, _, err = idx.Read(int64(len(positions)))
	require.Equal(t, io.EOF, err)

	require.NoError(t, idx.Close())

	// a reopened index rebuilds its size from the truncated file
	f, err = os.OpenFile(f.Name(), os.O_RDWR, 0600)
	require.NoError(t, err)
	idx, err = newIndex(f, c)
	require.NoError(t, err)

	off, pos, err := idx.Read(-1)
	require.NoError(t, err)
	require.Equal(t, uint32(len(positions)-1), off)
	require.Equal(t, positions[len(positions)-1], pos)
}
