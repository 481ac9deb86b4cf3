package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockSet_with(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	var ls lockSet
	ls = ls.with(3)
	ls = ls.with(1)
	ls = ls.with(3)
	held := ls
	grown := held.with(2)
	assert.Equal(lockSet{1, 3}, held, "with must not modify its receiver")
	assert.Equal(lockSet{1, 2, 3}, grown)
}

func TestStripes_update(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	s := newStripes(8)
	var runs, applied int
	s.update([]string{"a"}, func() ([]string, func()) {
		runs++
		return []string{"b", "c", "d"}, func() { applied++ }
	})
	assert.Equal(1, applied)
	assert.LessOrEqual(runs, 2)

	// every lock is released afterwards
	all := s.all()
	s.lock(all)
	s.unlock(all)
}
