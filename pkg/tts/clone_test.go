package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneVoiceValidation(t *testing.T) {
	c, err := NewCloner("test-key", "http://unused")
	require.NoError(t, err)

	ctx := context.Background()

	_, err = c.CloneVoice(ctx, CloneRequest{Sample: strings.NewReader("x"), Filename: "a.mp3"})
	assert.Error(t, err, "missing name")

	_, err = c.CloneVoice(ctx, CloneRequest{Name: "My Voice", Filename: "a.mp3"})
	assert.Error(t, err, "missing sample")

	_, err = c.CloneVoice(ctx, CloneRequest{Name: "My Voice", Sample: strings.NewReader("x"), Filename: "a.txt"})
	assert.Error(t, err, "bad extension")
}

func TestCloneVoiceRejectsOversizedSample(t *testing.T) {
	c, err := NewCloner("test-key", "http://unused")
	require.NoError(t, err)

	big := bytes.NewReader(make([]byte, MaxCloneSampleBytes+1))
	_, err = c.CloneVoice(context.Background(), CloneRequest{Name: "v", Sample: big, Filename: "a.wav"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestCloneVoiceSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/voices/add", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "My Voice", r.FormValue("name"))

		_, header, err := r.FormFile("files")
		require.NoError(t, err)
		assert.Equal(t, "sample.mp3", header.Filename)

		json.NewEncoder(w).Encode(map[string]string{"voice_id": "voice_new"})
	}))
	defer server.Close()

	c, err := NewCloner("test-key", server.URL)
	require.NoError(t, err)

	id, err := c.CloneVoice(context.Background(), CloneRequest{
		Name:     "My Voice",
		Sample:   strings.NewReader("fake audio bytes"),
		Filename: "sample.mp3",
	})
	require.NoError(t, err)
	assert.Equal(t, "voice_new", id)
}

func TestCloneVoiceSingleInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		json.NewEncoder(w).Encode(map[string]string{"voice_id": "voice_new"})
	}))
	defer server.Close()

	c, err := NewCloner("test-key", server.URL)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.CloneVoice(context.Background(), CloneRequest{
			Name:     "First",
			Sample:   strings.NewReader("audio"),
			Filename: "a.mp3",
		})
		assert.NoError(t, err)
	}()

	<-started
	_, err = c.CloneVoice(context.Background(), CloneRequest{
		Name:     "Second",
		Sample:   strings.NewReader("audio"),
		Filename: "b.mp3",
	})
	assert.True(t, errors.Is(err, ErrCloneInProgress))

	close(release)
	wg.Wait()
}

func TestCloneVoiceErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c, err := NewCloner("bad-key", server.URL)
	require.NoError(t, err)

	_, err = c.CloneVoice(context.Background(), CloneRequest{
		Name:     "v",
		Sample:   strings.NewReader("audio"),
		Filename: "a.mp3",
	})
	var ttsErr *Error
	require.ErrorAs(t, err, &ttsErr)
	assert.Equal(t, ErrCodeInvalidCredentials, ttsErr.Code)
}
