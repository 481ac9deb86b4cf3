package session

import (
	"hash/maphash"
	"slices"
	"sync"
)

// stripes is a fixed set of read/write locks. A key always maps to the same
// stripe, so an operation only serializes with operations whose keys share a
// stripe with its own.
type stripes struct {
	seed  maphash.Seed
	locks []sync.RWMutex
}

func newStripes(n int) *stripes {
	return &stripes{
		seed:  maphash.MakeSeed(),
		locks: make([]sync.RWMutex, n),
	}
}

func (s *stripes) index(key string) int {
	return int(maphash.String(s.seed, key) % uint64(len(s.locks)))
}

// rlock read-locks the stripe for key and returns its index and the unlock
// func.
func (s *stripes) rlock(key string) (int, func()) {
	i := s.index(key)
	s.locks[i].RLock()
	return i, s.locks[i].RUnlock
}

// lockSet is an ascending list of distinct stripe indexes. Locking in
// ascending order is what keeps multi-stripe updates deadlock free.
type lockSet []int

func (ls lockSet) with(i int) lockSet {
	pos, found := slices.BinarySearch(ls, i)
	if found {
		return ls
	}
	return slices.Insert(slices.Clone(ls), pos, i)
}

func (s *stripes) set(keys ...string) lockSet {
	ls := make(lockSet, 0, len(keys))
	for _, k := range keys {
		ls = ls.with(s.index(k))
	}
	return ls
}

func (s *stripes) lock(ls lockSet) {
	for _, i := range ls {
		s.locks[i].Lock()
	}
}

func (s *stripes) unlock(ls lockSet) {
	for j := len(ls) - 1; j >= 0; j-- {
		s.locks[ls[j]].Unlock()
	}
}

// update write-locks the stripes for keys and calls plan. plan inspects the
// guarded state and returns the keys of any other stripes the change touches,
// plus the change itself. If those stripes are not all held yet, every lock is
// released and plan runs again with the larger set, so plan must only read;
// apply runs once with every needed stripe held.
func (s *stripes) update(keys []string, plan func() (more []string, apply func())) {
	held := s.set(keys...)
	for {
		s.lock(held)
		more, apply := plan()
		need := held
		for _, k := range more {
			need = need.with(s.index(k))
		}
		if len(need) == len(held) {
			if apply != nil {
				apply()
			}
			s.unlock(held)
			return
		}
		s.unlock(held)
		held = need
	}
}

// all returns every stripe index, for whole-structure operations.
func (s *stripes) all() lockSet {
	ls := make(lockSet, len(s.locks))
	for i := range ls {
		ls[i] = i
	}
	return ls
}
