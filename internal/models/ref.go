package models

import "sort"

// ChunkRef is the back-reference stored by indexes. Indexes never hold text or embeddings.
type ChunkRef struct {
	LibraryID  string `json:"library_id"`
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
}

// RefSet is a set of ChunkRefs that remembers insertion order.
// Re-adding an existing ref keeps its original position.
type RefSet struct {
	next uint64
	refs map[ChunkRef]uint64
}

// NewRefSet returns an empty set.
func NewRefSet() *RefSet {
	return &RefSet{refs: make(map[ChunkRef]uint64)}
}

// Add inserts ref and reports whether it was new.
func (s *RefSet) Add(ref ChunkRef) bool {
	if _, ok := s.refs[ref]; ok {
		return false
	}
	s.refs[ref] = s.next
	s.next++
	return true
}

// Remove deletes ref and reports whether it was present.
func (s *RefSet) Remove(ref ChunkRef) bool {
	if _, ok := s.refs[ref]; !ok {
		return false
	}
	delete(s.refs, ref)
	return true
}

// RemoveFunc deletes every ref for which match returns true and returns how many were removed.
func (s *RefSet) RemoveFunc(match func(ChunkRef) bool) int {
	n := 0
	for ref := range s.refs {
		if match(ref) {
			delete(s.refs, ref)
			n++
		}
	}
	return n
}

// Contains reports whether ref is in the set.
func (s *RefSet) Contains(ref ChunkRef) bool {
	_, ok := s.refs[ref]
	return ok
}

// Len returns the number of refs.
func (s *RefSet) Len() int {
	return len(s.refs)
}

// Refs returns the refs in insertion order.
func (s *RefSet) Refs() []ChunkRef {
	type entry struct {
		ref ChunkRef
		seq uint64
	}
	entries := make([]entry, 0, len(s.refs))
	for ref, seq := range s.refs {
		entries = append(entries, entry{ref, seq})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]ChunkRef, len(entries))
	for i, e := range entries {
		out[i] = e.ref
	}
	return out
}
