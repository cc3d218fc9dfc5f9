package impl

import (
	"bytes"
	"slices"
	"sync"

	"lww-crdt/backend/crdt"
	"lww-crdt/backend/types"

	"github.com/rs/zerolog"
)

// LastWriterWins reconstructs a document by replaying the effective set of a
// TwoSet in operation order. The reconstructed trial is memoized and dropped
// by every mutation, under the same lock.
//
// - implements crdt.LastWriterWins
type LastWriterWins struct {
	mu      sync.Mutex
	set     *TwoSet
	patcher types.Patcher
	trial   *crdt.Trial // nil when stale
	log     zerolog.Logger
}

// NewLastWriterWins returns an empty LastWriterWins applying updates with
// the given patcher.
func NewLastWriterWins(patcher types.Patcher, log zerolog.Logger) *LastWriterWins {
	return &LastWriterWins{
		mu:      sync.Mutex{},
		set:     NewTwoSet(),
		patcher: patcher,
		log:     log,
	}
}

// Add implements crdt.TwoSet
func (l *LastWriterWins) Add(op types.Operation) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := l.set.Add(op)
	if added {
		l.trial = nil
	}
	return added
}

// Remove implements crdt.TwoSet
func (l *LastWriterWins) Remove(op types.Operation) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := l.set.Remove(op)
	if removed {
		l.trial = nil
	}
	return removed
}

// Clear implements crdt.TwoSet
func (l *LastWriterWins) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.set.Clear()
	l.trial = nil
}

// Effective implements crdt.TwoSet
func (l *LastWriterWins) Effective() []types.Operation {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.set.Effective()
}

// Added implements crdt.TwoSet
func (l *LastWriterWins) Added() []types.Operation {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.set.Added()
}

// Removed implements crdt.TwoSet
func (l *LastWriterWins) Removed() []types.Operation {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.set.Removed()
}

// Contains implements crdt.TwoSet
func (l *LastWriterWins) Contains(op types.Operation) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.set.Contains(op)
}

// IsEmpty implements crdt.TwoSet
func (l *LastWriterWins) IsEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.set.IsEmpty()
}

// Document implements crdt.LastWriterWins
func (l *LastWriterWins) Document() types.Document {
	l.mu.Lock()
	defer l.mu.Unlock()

	return bytes.Clone(l.current().Document)
}

// DocumentAsOf implements crdt.LastWriterWins
func (l *LastWriterWins) DocumentAsOf(ts int64) types.Document {
	return l.TrialAsOf(ts).Document
}

// Trial implements crdt.LastWriterWins
func (l *LastWriterWins) Trial() crdt.Trial {
	l.mu.Lock()
	defer l.mu.Unlock()

	return copyTrial(*l.current())
}

// TrialAsOf implements crdt.LastWriterWins. Only the trial at Latest is
// memoized.
func (l *LastWriterWins) TrialAsOf(ts int64) crdt.Trial {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ts == types.Latest {
		return copyTrial(*l.current())
	}
	return l.replay(ts)
}

// Quarantined implements crdt.LastWriterWins
func (l *LastWriterWins) Quarantined() []types.Operation {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.current().Quarantined)
}

// IsQuarantined implements crdt.LastWriterWins
func (l *LastWriterWins) IsQuarantined(op types.Operation) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Contains(l.current().Quarantined, op)
}

// IsCreated implements crdt.LastWriterWins
func (l *LastWriterWins) IsCreated() bool {
	return l.Count(types.Create) > 0
}

// IsDeleted implements crdt.LastWriterWins
func (l *LastWriterWins) IsDeleted() bool {
	return l.Count(types.Delete) > 0
}

// LatestKind implements crdt.LastWriterWins
func (l *LastWriterWins) LatestKind() (types.OperationKind, bool) {
	ops := l.Effective()
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].Kind != types.Read {
			return ops[i].Kind, true
		}
	}
	return 0, false
}

// Count implements crdt.LastWriterWins
func (l *LastWriterWins) Count(kind types.OperationKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return countKind(l.set.add.Difference(l.set.remove), kind)
}

// CountAdded implements crdt.LastWriterWins
func (l *LastWriterWins) CountAdded(kind types.OperationKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return countKind(l.set.add, kind)
}

// CountRemoved implements crdt.LastWriterWins
func (l *LastWriterWins) CountRemoved(kind types.OperationKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return countKind(l.set.remove, kind)
}

// Equal implements crdt.LastWriterWins
func (l *LastWriterWins) Equal(other crdt.LastWriterWins) bool {
	if other == nil {
		return false
	}
	return slices.Equal(l.Added(), other.Added()) && slices.Equal(l.Removed(), other.Removed())
}

// current returns the memoized trial, replaying the effective set if it is
// stale. Must be called with the lock held.
func (l *LastWriterWins) current() *crdt.Trial {
	if l.trial == nil {
		trial := l.replay(types.Latest)
		l.trial = &trial
	}
	return l.trial
}

// replay folds the effective operations up to ts over the absent document.
// Operations that fail to apply are quarantined and skipped. Must be called
// with the lock held.
func (l *LastWriterWins) replay(ts int64) crdt.Trial {
	var doc types.Document
	quarantined := make([]types.Operation, 0)

	for _, op := range l.set.Effective() {
		if op.Timestamp > ts {
			break
		}
		if op.Kind == types.Read {
			continue
		}

		next, err := op.Apply(doc, l.patcher)
		if err != nil {
			l.log.Debug().Err(err).Msgf("quarantining %s", op)
			quarantined = append(quarantined, op)
			continue
		}
		doc = next
	}

	return crdt.Trial{
		Document:    doc,
		Quarantined: quarantined,
	}
}

func copyTrial(t crdt.Trial) crdt.Trial {
	return crdt.Trial{
		Document:    bytes.Clone(t.Document),
		Quarantined: slices.Clone(t.Quarantined),
	}
}
