package impl

import (
	"slices"

	"lww-crdt/backend/types"

	mapset "github.com/deckarep/golang-set/v2"
)

// TwoSet holds an add-set and a remove-set of operations.
//
// - implements crdt.TwoSet
type TwoSet struct {
	add    mapset.Set[types.Operation]
	remove mapset.Set[types.Operation]
}

// NewTwoSet returns an empty TwoSet.
func NewTwoSet() *TwoSet {
	return &TwoSet{
		add:    mapset.NewSet[types.Operation](),
		remove: mapset.NewSet[types.Operation](),
	}
}

// Add implements crdt.TwoSet
func (s *TwoSet) Add(op types.Operation) bool {
	return s.add.Add(op)
}

// Remove implements crdt.TwoSet
func (s *TwoSet) Remove(op types.Operation) bool {
	return s.remove.Add(op)
}

// Effective implements crdt.TwoSet
func (s *TwoSet) Effective() []types.Operation {
	return sorted(s.add.Difference(s.remove))
}

// Added implements crdt.TwoSet
func (s *TwoSet) Added() []types.Operation {
	return sorted(s.add)
}

// Removed implements crdt.TwoSet
func (s *TwoSet) Removed() []types.Operation {
	return sorted(s.remove)
}

// Contains implements crdt.TwoSet
func (s *TwoSet) Contains(op types.Operation) bool {
	return s.add.Contains(op) && !s.remove.Contains(op)
}

// IsEmpty implements crdt.TwoSet. Both sets may be non-empty while the
// effective set is empty.
func (s *TwoSet) IsEmpty() bool {
	return s.add.IsSubset(s.remove)
}

// Clear implements crdt.TwoSet
func (s *TwoSet) Clear() {
	s.add.Clear()
	s.remove.Clear()
}

// Equal tells if both add-sets and both remove-sets are equal.
func (s *TwoSet) Equal(other *TwoSet) bool {
	return s.add.Equal(other.add) && s.remove.Equal(other.remove)
}

// countKind counts the operations of a kind in a set.
func countKind(set mapset.Set[types.Operation], kind types.OperationKind) int {
	count := 0
	set.Each(func(op types.Operation) bool {
		if op.Kind == kind {
			count++
		}
		return false
	})
	return count
}

func sorted(set mapset.Set[types.Operation]) []types.Operation {
	ops := set.ToSlice()
	slices.SortFunc(ops, types.Compare)
	return ops
}
