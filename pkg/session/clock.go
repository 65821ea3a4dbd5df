package session

import "time"

// Ticker delivers periodic ticks. Wraps time.Ticker so tests can
// substitute a manual clock.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock abstracts time for the controller: the connect delay and the
// elapsed-seconds ticker both run off it.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

type realTicker struct {
	t *time.Ticker
}

func (t *realTicker) C() <-chan time.Time {
	return t.t.C
}

func (t *realTicker) Stop() {
	t.t.Stop()
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

// RealClock returns the wall clock.
func RealClock() Clock {
	return realClock{}
}
