package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ClipScheme prefixes URLs of clips held in a Library.
const ClipScheme = "clip://"

// Resolver fetches the audio bytes behind a clip URL.
type Resolver interface {
	Resolve(ctx context.Context, url string) ([]byte, error)
}

// Library stores synthesized clips in memory and hands out clip://
// URLs for them. It resolves its own URLs plus plain http(s) ones, and
// doubles as an HTTP handler so gateway clients can fetch clips by id.
type Library struct {
	mu         sync.Mutex
	clips      map[string][]byte
	httpClient *http.Client
}

var _ Resolver = (*Library)(nil)

func NewLibrary() *Library {
	return &Library{
		clips:      make(map[string][]byte),
		httpClient: &http.Client{},
	}
}

// Publish stores a clip and returns its URL.
func (l *Library) Publish(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty clip")
	}

	id := uuid.New().String()[:8]
	clip := make([]byte, len(data))
	copy(clip, data)

	l.mu.Lock()
	l.clips[id] = clip
	l.mu.Unlock()

	return ClipScheme + id, nil
}

// Remove drops a clip. Removing a missing clip is a no-op.
func (l *Library) Remove(url string) {
	id := strings.TrimPrefix(url, ClipScheme)
	l.mu.Lock()
	delete(l.clips, id)
	l.mu.Unlock()
}

// Resolve returns the audio bytes for a clip:// or http(s):// URL.
func (l *Library) Resolve(ctx context.Context, url string) ([]byte, error) {
	switch {
	case strings.HasPrefix(url, ClipScheme):
		id := strings.TrimPrefix(url, ClipScheme)
		l.mu.Lock()
		clip, ok := l.clips[id]
		l.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("unknown clip %s", id)
		}
		return clip, nil

	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch clip: %w", err)
		}
		resp, err := l.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch clip: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch clip: status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)

	default:
		return nil, fmt.Errorf("unsupported clip URL %q", url)
	}
}

// ServeHTTP serves clips at <prefix>/<id> for clients that fetch audio
// over HTTP instead of resolving clip URLs locally.
func (l *Library) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	id := parts[len(parts)-1]

	l.mu.Lock()
	clip, ok := l.clips[id]
	l.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(clip)
}
