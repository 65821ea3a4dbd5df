// Package history persists call records and the per-user persona
// catalog on top of a key-value store.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/echoes-ai/echocall/pkg/store"
)

// ErrEchoNotFound is returned when an echo id does not exist for the
// requesting user. Echoes owned by other users are indistinguishable
// from missing ones.
var ErrEchoNotFound = errors.New("echo not found")

const (
	callsKeyPrefix  = "calls/"
	echoesKeyPrefix = "echoes/"
)

// Store reads and writes call records and echoes. All methods are safe
// for concurrent use; reads and writes of one user's lists are
// serialized through a single mutex.
type Store struct {
	kv store.KV
	mu sync.Mutex
}

func NewStore(kv store.KV) *Store {
	return &Store{kv: kv}
}

// AppendCall persists a call record for userID. Appending a record
// whose id is already present is a no-op, so retries after a partial
// failure never produce duplicates. New records go to the front: Calls
// returns newest-first.
func (s *Store) AppendCall(userID string, rec CallRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("append call: empty record id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadCalls(userID)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.ID == rec.ID {
			return nil
		}
	}
	records = append([]CallRecord{rec}, records...)
	return s.saveJSON(callsKeyPrefix+userID, records)
}

// Calls returns the user's call records, newest first. A user with no
// history gets an empty slice.
func (s *Store) Calls(userID string) ([]CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCalls(userID)
}

// SaveEcho adds or replaces an echo in the user's catalog, keyed by id.
func (s *Store) SaveEcho(userID string, echo Echo) error {
	if echo.ID == "" {
		return fmt.Errorf("save echo: empty echo id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	echoes, err := s.loadEchoes(userID)
	if err != nil {
		return err
	}
	replaced := false
	for i, e := range echoes {
		if e.ID == echo.ID {
			echoes[i] = echo
			replaced = true
			break
		}
	}
	if !replaced {
		echoes = append(echoes, echo)
	}
	return s.saveJSON(echoesKeyPrefix+userID, echoes)
}

// Echoes returns the user's persona catalog in creation order.
func (s *Store) Echoes(userID string) ([]Echo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadEchoes(userID)
}

// EchoByID looks up one of the user's echoes. Missing ids and ids
// owned by another user both return ErrEchoNotFound.
func (s *Store) EchoByID(userID, echoID string) (Echo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	echoes, err := s.loadEchoes(userID)
	if err != nil {
		return Echo{}, err
	}
	for _, e := range echoes {
		if e.ID == echoID {
			return e, nil
		}
	}
	return Echo{}, fmt.Errorf("%w: %s", ErrEchoNotFound, echoID)
}

// DeleteEcho removes an echo from the user's catalog. Removing a
// missing id is a no-op.
func (s *Store) DeleteEcho(userID, echoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	echoes, err := s.loadEchoes(userID)
	if err != nil {
		return err
	}
	kept := echoes[:0]
	for _, e := range echoes {
		if e.ID != echoID {
			kept = append(kept, e)
		}
	}
	return s.saveJSON(echoesKeyPrefix+userID, kept)
}

func (s *Store) loadCalls(userID string) ([]CallRecord, error) {
	var records []CallRecord
	if err := s.loadJSON(callsKeyPrefix+userID, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []CallRecord{}
	}
	return records, nil
}

func (s *Store) loadEchoes(userID string) ([]Echo, error) {
	var echoes []Echo
	if err := s.loadJSON(echoesKeyPrefix+userID, &echoes); err != nil {
		return nil, err
	}
	if echoes == nil {
		echoes = []Echo{}
	}
	return echoes, nil
}

func (s *Store) loadJSON(key string, out any) error {
	data, ok, err := s.kv.Get(key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) saveJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Put(key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
