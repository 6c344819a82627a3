package credentials

import (
	"context"
	"fmt"
	"sync"
)

// UsernameStore answers whether a username is already taken within a school
type UsernameStore interface {
	UsernameExists(ctx context.Context, schoolID int64, username string) (bool, error)
}

// Allocator hands out collision-free usernames, serialized per school.
// Within one process, a per-school lock plus an in-memory reservation set
// guarantees two concurrent rows can never win the same handle even before
// either credential row is committed. Across processes, the unique constraint
// on (school_id, username) is authoritative and callers retry allocation on a
// unique violation.
type Allocator struct {
	store UsernameStore

	mu       sync.Mutex
	locks    map[int64]*sync.Mutex
	reserved map[int64]map[string]struct{}
}

// NewAllocator creates an Allocator backed by the given username store
func NewAllocator(store UsernameStore) *Allocator {
	return &Allocator{
		store:    store,
		locks:    make(map[int64]*sync.Mutex),
		reserved: make(map[int64]map[string]struct{}),
	}
}

// Allocate returns the base handle if free, otherwise the base with the
// smallest integer suffix (".2", ".3", ...) not yet taken or reserved. The
// returned username stays reserved until Release is called.
func (a *Allocator) Allocate(ctx context.Context, schoolID int64, base string) (string, error) {
	lock := a.schoolLock(schoolID)
	lock.Lock()
	defer lock.Unlock()

	candidate := base
	for suffix := 2; ; suffix++ {
		taken, err := a.isTaken(ctx, schoolID, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			a.reserve(schoolID, candidate)
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s.%d", base, suffix)
	}
}

// Release drops an in-memory reservation. Call it once the credential row is
// committed (the store is authoritative from then on) or when the row failed
// and the handle should become available again.
func (a *Allocator) Release(schoolID int64, username string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if set, ok := a.reserved[schoolID]; ok {
		delete(set, username)
	}
}

func (a *Allocator) isTaken(ctx context.Context, schoolID int64, candidate string) (bool, error) {
	a.mu.Lock()
	_, inFlight := a.reserved[schoolID][candidate]
	a.mu.Unlock()
	if inFlight {
		return true, nil
	}

	exists, err := a.store.UsernameExists(ctx, schoolID, candidate)
	if err != nil {
		return false, fmt.Errorf("failed to check username %q: %w", candidate, err)
	}
	return exists, nil
}

func (a *Allocator) reserve(schoolID int64, username string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reserved[schoolID] == nil {
		a.reserved[schoolID] = make(map[string]struct{})
	}
	a.reserved[schoolID][username] = struct{}{}
}

func (a *Allocator) schoolLock(schoolID int64) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[schoolID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[schoolID] = lock
	}
	return lock
}
