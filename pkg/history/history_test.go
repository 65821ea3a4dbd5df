package history

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoes-ai/echocall/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(store.NewMemoryStore())
}

func TestAppendCallIdempotent(t *testing.T) {
	s := newTestStore(t)

	rec := CallRecord{ID: "call_1", EchoID: "echo_1", EchoName: "Ada", Duration: "0:42"}
	require.NoError(t, s.AppendCall("user_1", rec))
	require.NoError(t, s.AppendCall("user_1", rec))

	records, err := s.Calls("user_1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "call_1", records[0].ID)
}

func TestCallsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendCall("user_1", CallRecord{ID: "call_1"}))
	require.NoError(t, s.AppendCall("user_1", CallRecord{ID: "call_2"}))
	require.NoError(t, s.AppendCall("user_1", CallRecord{ID: "call_3"}))

	records, err := s.Calls("user_1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "call_3", records[0].ID)
	assert.Equal(t, "call_2", records[1].ID)
	assert.Equal(t, "call_1", records[2].ID)
}

func TestCallsEmptyForUnknownUser(t *testing.T) {
	s := newTestStore(t)

	records, err := s.Calls("nobody")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppendCallRejectsEmptyID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.AppendCall("user_1", CallRecord{}))
}

func TestEchoOwnership(t *testing.T) {
	s := newTestStore(t)

	echo := Echo{ID: "echo_1", Name: "Ada", CreatedAt: time.Now()}
	require.NoError(t, s.SaveEcho("user_1", echo))

	got, err := s.EchoByID("user_1", "echo_1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	// Another user's lookup of the same id fails identically to a
	// missing id.
	_, err = s.EchoByID("user_2", "echo_1")
	assert.True(t, errors.Is(err, ErrEchoNotFound))

	_, err = s.EchoByID("user_1", "echo_missing")
	assert.True(t, errors.Is(err, ErrEchoNotFound))
}

func TestSaveEchoReplacesByID(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveEcho("user_1", Echo{ID: "echo_1", Name: "Ada"}))
	require.NoError(t, s.SaveEcho("user_1", Echo{ID: "echo_1", Name: "Ada II"}))

	echoes, err := s.Echoes("user_1")
	require.NoError(t, err)
	require.Len(t, echoes, 1)
	assert.Equal(t, "Ada II", echoes[0].Name)
}

func TestDeleteEcho(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveEcho("user_1", Echo{ID: "echo_1", Name: "Ada"}))
	require.NoError(t, s.SaveEcho("user_1", Echo{ID: "echo_2", Name: "Brin"}))
	require.NoError(t, s.DeleteEcho("user_1", "echo_1"))
	require.NoError(t, s.DeleteEcho("user_1", "echo_missing"))

	echoes, err := s.Echoes("user_1")
	require.NoError(t, err)
	require.Len(t, echoes, 1)
	assert.Equal(t, "echo_2", echoes[0].ID)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{59, "0:59"},
		{60, "1:00"},
		{61, "1:01"},
		{600, "10:00"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.seconds))
	}
}

func TestFileBackedHistory(t *testing.T) {
	kv, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	s := NewStore(kv)

	require.NoError(t, s.AppendCall("user_1", CallRecord{ID: "call_1", EchoName: "Ada"}))

	records, err := s.Calls("user_1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ada", records[0].EchoName)
}
