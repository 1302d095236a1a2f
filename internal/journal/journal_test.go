package journal_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerapi/internal/journal"
)

func TestJournal(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, j *journal.Journal){
		"append and read an entry succeeds": testAppendRead,
		"offset out of range error":         testOutOfRangeErr,
		"init with existing segments":       testInitExisting,
		"lowest offset":                     testLowestOffset,
		"highest offset":                    testHighestOffset,
		"truncate":                          testTruncate,
	} {
		t.Run(scenario, func(t *testing.T) {
			dir, err := os.MkdirTemp("", "journal-test")
			require.NoError(t, err)
			defer os.RemoveAll(dir)

			c := journal.Config{}
			c.Segment.MaxStoreBytes = 128
			j, err := journal.NewJournal(dir, c)
			require.NoError(t, err)

			fn(t, j)
		})
	}
}

func newEntry() *journal.Entry {
	return &journal.Entry{
		Op:            "deposit",
		TransactionID: "0b54f8f1-0000-0000-0000-000000000001",
		ReceiverID:    "0b54f8f1-0000-0000-0000-000000000002",
		Amount:        "50.00",
		OccurredAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testAppendRead(t *testing.T, j *journal.Journal) {
	entry := newEntry()
	off, err := j.Append(entry)
	require.NoError(t, err)
	require.Equal(t, uint64(0), off)

	read, err := j.Read(off)
	require.NoError(t, err)
	require.Equal(t, entry, read)
}

func testOutOfRangeErr(t *testing.T, j *journal.Journal) {
	read, err := j.Read(2)
	require.Nil(t, read)
	journalErr := err.(journal.ErrOffsetOutOfRange)
	require.Equal(t, uint64(2), journalErr.Offset)
}

func testInitExisting(t *testing.T, o *journal.Journal) {
	for i := 0; i < 3; i++ {
		_, err := o.Append(newEntry())
		require.NoError(t, err)
	}
	require.NoError(t, o.Close())

	n, err := journal.NewJournal(o.Dir, o.Config)
	require.NoError(t, err)
	off, err := n.Append(newEntry())
	require.NoError(t, err)
	require.Equal(t, uint64(3), off)
}

func testLowestOffset(t *testing.T, j *journal.Journal) {
	_, err := j.Append(newEntry())
	require.NoError(t, err)

	off, err := j.LowestOffset()
	require.NoError(t, err)
	require.Equal(t, uint64(0), off)
}

func testHighestOffset(t *testing.T, j *journal.Journal) {
	for i := 0; i < 3; i++ {
		_, err := j.Append(newEntry())
		require.NoError(t, err)
	}

	off, err := j.HighestOffset()
	require.NoError(t, err)
	require.Equal(t, uint64(2), off)
}

func testTruncate(t *testing.T, j *journal.Journal) {
	for i := 0; i < 3; i++ {
		_, err := j.Append(newEntry())
		require.NoError(t, err)
	}

	err := j.Truncate(1)
	require.NoError(t, err)

	_, err = j.Read(0)
	require.Error(t, err)
}
