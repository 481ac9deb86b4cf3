package session

import (
	"fmt"
	"slices"
)

type set map[string]struct{}

type subjectShard struct {
	bySubject map[string]set    // sub -> local ids
	byLocalID map[string]set    // local id -> subs
	handles   map[string]Handle // local id -> handle, when bound with one
}

// SubjectIndex associates a subject (the sub claim) with the set of local
// session ids currently active for it. A reverse local id -> subjects view is
// kept alongside, so UnbindBySessionID does not have to scan every subject.
//
// Sessions bound through BindSubjectToHandle also keep their Handle, so a
// subject logout can reach a session which has no correlation entry.
type SubjectIndex struct {
	stripes *stripes
	shards  []subjectShard
}

// NewSubjectIndex creates an empty SubjectIndex. Supports the WithShards
// option.
func NewSubjectIndex(opt ...Option) *SubjectIndex {
	opts := getSubjectIndexOpts(opt...)
	if opts.withShards <= 0 {
		opts.withShards = DefaultShards
	}
	si := &SubjectIndex{
		stripes: newStripes(opts.withShards),
		shards:  make([]subjectShard, opts.withShards),
	}
	for i := range si.shards {
		si.shards[i] = subjectShard{
			bySubject: map[string]set{},
			byLocalID: map[string]set{},
			handles:   map[string]Handle{},
		}
	}
	return si
}

func (si *SubjectIndex) shard(key string) *subjectShard {
	return &si.shards[si.stripes.index(key)]
}

func addTo(m map[string]set, key, member string) {
	members, ok := m[key]
	if !ok {
		members = set{}
		m[key] = members
	}
	members[member] = struct{}{}
}

func removeFrom(m map[string]set, key, member string) {
	members, ok := m[key]
	if !ok {
		return
	}
	delete(members, member)
	if len(members) == 0 {
		delete(m, key)
	}
}

// BindSubjectToSession adds localID to the sessions of sub.
func (si *SubjectIndex) BindSubjectToSession(sub, localID string) error {
	const op = "session.(SubjectIndex).BindSubjectToSession"
	switch {
	case sub == "":
		return fmt.Errorf("%s: missing subject: %w", op, ErrInvalidParameter)
	case localID == "":
		return fmt.Errorf("%s: missing local session id: %w", op, ErrInvalidParameter)
	}
	si.stripes.update([]string{sub, localID}, func() ([]string, func()) {
		return nil, func() {
			addTo(si.shard(sub).bySubject, sub, localID)
			addTo(si.shard(localID).byLocalID, localID, sub)
		}
	})
	return nil
}

// BindSubjectToHandle is BindSubjectToSession for h.ID() and keeps h until
// the session is unbound.
func (si *SubjectIndex) BindSubjectToHandle(sub string, h Handle) error {
	const op = "session.(SubjectIndex).BindSubjectToHandle"
	switch {
	case sub == "":
		return fmt.Errorf("%s: missing subject: %w", op, ErrInvalidParameter)
	case isNil(h):
		return fmt.Errorf("%s: missing handle: %w", op, ErrNilParameter)
	case h.ID() == "":
		return fmt.Errorf("%s: handle has no id: %w", op, ErrInvalidParameter)
	}
	localID := h.ID()
	si.stripes.update([]string{sub, localID}, func() ([]string, func()) {
		return nil, func() {
			addTo(si.shard(sub).bySubject, sub, localID)
			addTo(si.shard(localID).byLocalID, localID, sub)
			si.shard(localID).handles[localID] = h
		}
	})
	return nil
}

// handle returns the Handle localID was bound with, if any.
func (si *SubjectIndex) handle(localID string) (Handle, bool) {
	i, unlock := si.stripes.rlock(localID)
	defer unlock()
	h, ok := si.shards[i].handles[localID]
	return h, ok
}

// SessionsForSubject returns the sorted local session ids bound to sub. The
// result is empty, never nil, when sub has no sessions.
func (si *SubjectIndex) SessionsForSubject(sub string) []string {
	if sub == "" {
		return []string{}
	}
	i, unlock := si.stripes.rlock(sub)
	defer unlock()
	members := si.shards[i].bySubject[sub]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// UnbindBySessionID removes localID from every subject it is bound to.
// Subjects left without sessions are dropped.
func (si *SubjectIndex) UnbindBySessionID(localID string) {
	if localID == "" {
		return
	}
	si.stripes.update([]string{localID}, func() ([]string, func()) {
		subs := si.shard(localID).byLocalID[localID]
		if len(subs) == 0 {
			return nil, func() {
				delete(si.shard(localID).handles, localID)
			}
		}
		more := make([]string, 0, len(subs))
		for sub := range subs {
			more = append(more, sub)
		}
		return more, func() {
			for _, sub := range more {
				removeFrom(si.shard(sub).bySubject, sub, localID)
			}
			delete(si.shard(localID).byLocalID, localID)
			delete(si.shard(localID).handles, localID)
		}
	})
}

// Close clears the index.
func (si *SubjectIndex) Close() {
	all := si.stripes.all()
	si.stripes.lock(all)
	defer si.stripes.unlock(all)
	for i := range si.shards {
		clear(si.shards[i].bySubject)
		clear(si.shards[i].byLocalID)
		clear(si.shards[i].handles)
	}
}
