package transaction

import (
	"sort"
	"sync"
)

// walletLocks serializes ledger mutations per wallet. The reverse-then-
// reapply sequence is a chain of separate storage round trips, so without
// this two concurrent mutations against the same wallet could interleave
// into a lost update. Locks for multiple wallets are always taken in ID
// order to rule out deadlock on cross-wallet moves.
type walletLocks struct {
	mu sync.Map // wallet id -> *sync.Mutex
}

func (l *walletLocks) get(id string) *sync.Mutex {
	m, _ := l.mu.LoadOrStore(id, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// lock acquires the mutexes for the given wallet IDs, deduplicated and in
// sorted order, and returns the matching unlock function.
func (l *walletLocks) lock(ids ...string) func() {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)

	locked := make([]*sync.Mutex, 0, len(uniq))
	for _, id := range uniq {
		m := l.get(id)
		m.Lock()
		locked = append(locked, m)
	}

	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}
