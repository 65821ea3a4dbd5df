package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingKeepsChronologicalOrder(t *testing.T) {
	r := NewRing(16000, 10*time.Millisecond) // 320 bytes

	r.Write([]byte{1, 2, 3, 4})
	assert.Equal(t, []byte{1, 2, 3, 4}, r.Snapshot())
	assert.Equal(t, 4, r.Len())
}

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing(1000, 2*time.Millisecond) // 4 bytes

	r.Write([]byte{1, 2, 3})
	r.Write([]byte{4, 5})

	assert.Equal(t, []byte{2, 3, 4, 5}, r.Snapshot())
	assert.Equal(t, 4, r.Len())
}

func TestRingWriteLargerThanWindow(t *testing.T) {
	r := NewRing(1000, 2*time.Millisecond) // 4 bytes

	r.Write([]byte{1, 2, 3, 4, 5, 6, 7})
	assert.Equal(t, []byte{4, 5, 6, 7}, r.Snapshot())
}

func TestRingWrapAcrossMultipleWrites(t *testing.T) {
	r := NewRing(1000, 3*time.Millisecond) // 6 bytes

	for i := byte(0); i < 10; i++ {
		r.Write([]byte{i})
	}
	assert.Equal(t, []byte{4, 5, 6, 7, 8, 9}, r.Snapshot())
}

func TestRingClear(t *testing.T) {
	r := NewRing(16000, 10*time.Millisecond)
	r.Write([]byte{1, 2, 3})
	r.Clear()

	require.Nil(t, r.Snapshot())
	assert.Equal(t, 0, r.Len())
}

func TestRingEmptySnapshot(t *testing.T) {
	r := NewRing(16000, 10*time.Millisecond)
	assert.Nil(t, r.Snapshot())
}
