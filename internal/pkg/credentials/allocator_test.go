package credentials

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUsernameStore mimics the credentials table: usernames become taken only
// when Commit is called, like a row being inserted
type fakeUsernameStore struct {
	mu    sync.Mutex
	taken map[int64]map[string]bool
}

func newFakeUsernameStore() *fakeUsernameStore {
	return &fakeUsernameStore{taken: make(map[int64]map[string]bool)}
}

func (s *fakeUsernameStore) UsernameExists(_ context.Context, schoolID int64, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taken[schoolID][username], nil
}

func (s *fakeUsernameStore) Commit(schoolID int64, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken[schoolID] == nil {
		s.taken[schoolID] = make(map[string]bool)
	}
	s.taken[schoolID][username] = true
}

func TestAllocateReturnsBaseWhenFree(t *testing.T) {
	allocator := NewAllocator(newFakeUsernameStore())

	username, err := allocator.Allocate(context.Background(), 1, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", username)
}

func TestAllocateSuffixesOnStoredCollision(t *testing.T) {
	store := newFakeUsernameStore()
	store.Commit(1, "jane.doe")
	store.Commit(1, "jane.doe.2")
	allocator := NewAllocator(store)

	username, err := allocator.Allocate(context.Background(), 1, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe.3", username)
}

func TestAllocateReservationBlocksUncommittedHandle(t *testing.T) {
	// The first allocation has not been committed to the store yet, the
	// second must still step over it
	store := newFakeUsernameStore()
	allocator := NewAllocator(store)
	ctx := context.Background()

	first, err := allocator.Allocate(ctx, 1, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", first)

	second, err := allocator.Allocate(ctx, 1, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe.2", second)
}

func TestReleaseFreesReservedHandle(t *testing.T) {
	store := newFakeUsernameStore()
	allocator := NewAllocator(store)
	ctx := context.Background()

	first, err := allocator.Allocate(ctx, 1, "jane.doe")
	require.NoError(t, err)

	// The row failed, so the handle goes back into the pool
	allocator.Release(1, first)

	again, err := allocator.Allocate(ctx, 1, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", again)
}

func TestAllocateScopedPerSchool(t *testing.T) {
	store := newFakeUsernameStore()
	store.Commit(1, "jane.doe")
	allocator := NewAllocator(store)
	ctx := context.Background()

	// Same handle is free in another school
	username, err := allocator.Allocate(ctx, 2, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", username)
}

func TestAllocateConcurrentSameBase(t *testing.T) {
	store := newFakeUsernameStore()
	allocator := NewAllocator(store)
	ctx := context.Background()

	const goroutines = 8
	results := make([]string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			username, err := allocator.Allocate(ctx, 1, "jane.doe")
			if !assert.NoError(t, err) {
				return
			}
			store.Commit(1, username)
			allocator.Release(1, username)
			results[i] = username
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, goroutines)
	for _, username := range results {
		assert.False(t, seen[username], "username %q allocated twice", username)
		seen[username] = true
	}
}
