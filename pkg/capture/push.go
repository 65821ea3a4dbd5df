package capture

import (
	"context"
	"sync"
)

// PushRecognizer is a Recognizer fed by an external producer, such as
// a gateway client relaying its own speech recognition results. Each
// Recognize call waits for exactly one pushed utterance. Pushes that
// arrive while nobody is waiting are dropped, mirroring the session
// rule that speech outside the listening phase is discarded.
type PushRecognizer struct {
	mu      sync.Mutex
	waiting chan string
}

var _ Recognizer = (*PushRecognizer)(nil)

func NewPushRecognizer() *PushRecognizer {
	return &PushRecognizer{}
}

// Push hands an utterance to a waiting Recognize call. It reports
// whether the utterance was consumed; false means it was dropped.
func (p *PushRecognizer) Push(text string) bool {
	p.mu.Lock()
	ch := p.waiting
	p.waiting = nil
	p.mu.Unlock()

	if ch == nil {
		return false
	}
	ch <- text
	return true
}

// Recognize blocks until the next pushed utterance or context
// cancellation.
func (p *PushRecognizer) Recognize(ctx context.Context) (string, error) {
	ch := make(chan string, 1)

	p.mu.Lock()
	p.waiting = ch
	p.mu.Unlock()

	select {
	case text := <-ch:
		return text, nil
	case <-ctx.Done():
		p.mu.Lock()
		if p.waiting == ch {
			p.waiting = nil
		}
		p.mu.Unlock()
		return "", ctx.Err()
	}
}
