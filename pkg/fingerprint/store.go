package fingerprint

import (
	"sync"
)

// Store maps canonical file paths to the digest of their contents as of the
// last time they were shipped to the remote host.
type Store struct {
	digests map[string]string
	lock    sync.Mutex
}

// Pending contains digests that have been staged, but not yet committed to a
// Store.
type Pending map[string]string

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{digests: map[string]string{}}
}

// Lookup returns the last recorded digest of `path`.
func (store *Store) Lookup(path string) (string, bool) {
	store.lock.Lock()
	defer store.lock.Unlock()

	digest, ok := store.digests[path]
	return digest, ok
}

// Record replaces the digest of `path`.
func (store *Store) Record(path, digest string) {
	store.lock.Lock()
	defer store.lock.Unlock()

	store.digests[path] = digest
}

// Dirty returns whether a file with the given digest needs to be shipped.
func (store *Store) Dirty(path, digest string) bool {
	recorded, ok := store.Lookup(path)
	return !ok || recorded != digest
}

// Commit records all the digests in `pending`. The update is atomic with
// respect to other calls on the Store.
func (store *Store) Commit(pending Pending) {
	store.lock.Lock()
	defer store.lock.Unlock()

	for path, digest := range pending {
		store.digests[path] = digest
	}
}

// Snapshot returns a copy of the recorded digests.
func (store *Store) Snapshot() map[string]string {
	store.lock.Lock()
	defer store.lock.Unlock()

	// Copy the underlying map because maps are reference types.
	snapshotCopy := map[string]string{}
	for k, v := range store.digests {
		snapshotCopy[k] = v
	}
	return snapshotCopy
}

// Len returns the number of recorded files.
func (store *Store) Len() int {
	store.lock.Lock()
	defer store.lock.Unlock()

	return len(store.digests)
}
