// Package store provides the key-value persistence layer used by the
// call history and persona catalogs. Writes are last-write-wins and
// there are no transactions.
package store

// KV is a flat key-value store. Keys are slash-separated strings
// (for example "calls/<userID>"), values are opaque byte slices.
type KV interface {
	// Get returns the value for key. The second return value reports
	// whether the key exists.
	Get(key string) ([]byte, bool, error)

	// Put stores value under key, replacing any existing value.
	Put(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}
