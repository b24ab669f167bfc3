package store

import (
	"sync"
	"testing"
	"time"

	"github.com/erazemk/closet/internal/db"
)

// newTestStore returns a Store over a fresh in-memory database whose clock
// advances one second per call, so creation order is deterministic.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return withFakeClock(New(db.NewTestDB(t), db.SQLite))
}

// newFileTestStore returns a Store over a file database with a multi
// connection pool, for tests where writers must overlap.
func newFileTestStore(t *testing.T) *Store {
	t.Helper()
	return withFakeClock(New(db.NewFileTestDB(t), db.SQLite))
}

// race runs fn on n goroutines released together and waits for all of them.
func race(n int, fn func(i int)) {
	var ready, done sync.WaitGroup
	start := make(chan struct{})
	ready.Add(n)
	done.Add(n)
	for i := range n {
		go func() {
			defer done.Done()
			ready.Done()
			<-start
			fn(i)
		}()
	}
	ready.Wait()
	close(start)
	done.Wait()
}

func withFakeClock(s *Store) *Store {

	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	return s
}
