package impl

import (
	"testing"

	"lww-crdt/backend/patch"
	"lww-crdt/backend/types"
	"lww-crdt/internal/random"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// ----- Helper functions -----

func newTestLWW() *LastWriterWins {
	return NewLastWriterWins(patch.New(), zerolog.Nop())
}

func mustOp(t *testing.T, id string, kind types.OperationKind, ts int64, payload string) types.Operation {
	var raw []byte
	if payload != "" {
		raw = []byte(payload)
	}
	op, err := types.NewOperation(id, kind, ts, raw)
	require.NoError(t, err)
	return op
}

// ----- Tests -----

func Test_TwoSet_RemoveDominates(t *testing.T) {
	s := NewTwoSet()
	op := mustOp(t, "a", types.Create, 10, "")
	later := mustOp(t, "b", types.Delete, 20, "")

	require.True(t, s.IsEmpty())

	// removal before the add still wins
	require.True(t, s.Remove(op))
	require.True(t, s.Add(op))
	require.False(t, s.Add(op))

	require.False(t, s.Contains(op))
	require.Empty(t, s.Effective())
	require.True(t, s.IsEmpty())
	require.Len(t, s.Added(), 1)
	require.Len(t, s.Removed(), 1)

	s.Add(later)
	require.False(t, s.IsEmpty())
	require.Equal(t, []types.Operation{later}, s.Effective())

	s.Clear()
	require.True(t, s.IsEmpty())
	require.Empty(t, s.Added())
	require.Empty(t, s.Removed())
}

func Test_TwoSet_Equal(t *testing.T) {
	a := NewTwoSet()
	b := NewTwoSet()
	op1 := mustOp(t, "a", types.Create, 1, "")
	op2 := mustOp(t, "b", types.Read, 2, "")

	a.Add(op1)
	a.Remove(op2)
	b.Remove(op2)
	require.False(t, a.Equal(b))

	b.Add(op1)
	require.True(t, a.Equal(b))
}

// A replica receiving the UPDATE before the CREATE quarantines it until the
// CREATE arrives.
func Test_LWW_ReverseOrder_CreateUpdate(t *testing.T) {
	l := newTestLWW()
	create := mustOp(t, "c", types.Create, 0, "")
	update := mustOp(t, "u", types.Update, 10, `[{"op":"add","path":"/x","value":1}]`)

	l.Add(update)
	require.Nil(t, l.Document())
	require.Equal(t, []types.Operation{update}, l.Quarantined())
	require.True(t, l.IsQuarantined(update))

	l.Add(create)
	require.JSONEq(t, `{"x":1}`, string(l.Document()))
	require.Empty(t, l.Quarantined())
	require.True(t, l.IsCreated())
	require.False(t, l.IsDeleted())
}

// A delete makes the document absent and later updates fail to apply.
func Test_LWW_DeleteThenLateUpdate(t *testing.T) {
	l := newTestLWW()
	l.Add(mustOp(t, "c", types.Create, 0, ""))
	l.Add(mustOp(t, "u", types.Update, 10, `[{"op":"add","path":"/x","value":1}]`))
	l.Add(mustOp(t, "d", types.Delete, 20, ""))

	require.Nil(t, l.Document())
	require.JSONEq(t, `{"x":1}`, string(l.DocumentAsOf(19)))
	require.Nil(t, l.DocumentAsOf(20))

	late := mustOp(t, "v", types.Update, 25, `[{"op":"add","path":"/y","value":2}]`)
	l.Add(late)
	require.Nil(t, l.Document())
	require.Equal(t, []types.Operation{late}, l.Quarantined())

	kind, ok := l.LatestKind()
	require.True(t, ok)
	require.Equal(t, types.Update, kind)
	require.True(t, l.IsDeleted())
}

// Removing an update reverts its effect everywhere it was applied.
func Test_LWW_RemoveUpdate(t *testing.T) {
	l := newTestLWW()
	create := mustOp(t, "c", types.Create, 0, "")
	update := mustOp(t, "u", types.Update, 10, `[{"op":"add","path":"/x","value":1}]`)

	l.Add(create)
	l.Add(update)
	require.JSONEq(t, `{"x":1}`, string(l.Document()))

	l.Remove(update)
	require.JSONEq(t, `{}`, string(l.Document()))
	require.Equal(t, 1, l.CountAdded(types.Update))
	require.Equal(t, 1, l.CountRemoved(types.Update))
	require.Equal(t, 0, l.Count(types.Update))
}

// Reads never touch the document but are counted.
func Test_LWW_ReadsAreIgnored(t *testing.T) {
	l := newTestLWW()
	l.Add(mustOp(t, "c", types.Create, 0, ""))
	l.Add(mustOp(t, "r1", types.Read, 1, ""))
	l.Add(mustOp(t, "r2", types.Read, 2, ""))

	require.JSONEq(t, `{}`, string(l.Document()))
	require.Equal(t, 2, l.Count(types.Read))
	require.Empty(t, l.Quarantined())

	kind, ok := l.LatestKind()
	require.True(t, ok)
	require.Equal(t, types.Create, kind)
}

// Replaying twice without mutation is stable and does not grow the
// quarantine.
func Test_LWW_IdempotentReplay(t *testing.T) {
	l := newTestLWW()
	l.Add(mustOp(t, "u", types.Update, 10, `[{"op":"add","path":"/x","value":1}]`))

	first := l.Trial()
	second := l.Trial()
	require.Equal(t, first, second)
	require.Len(t, second.Quarantined, 1)

	asOf := l.TrialAsOf(types.Latest)
	require.Equal(t, first, asOf)
}

// Mutating the returned document does not corrupt the memoized trial.
func Test_LWW_DocumentIsCopied(t *testing.T) {
	l := newTestLWW()
	l.Add(mustOp(t, "c", types.Create, 0, ""))

	doc := l.Document()
	doc[0] = '['
	require.JSONEq(t, `{}`, string(l.Document()))
}

func Test_LWW_Clear(t *testing.T) {
	l := newTestLWW()
	l.Add(mustOp(t, "c", types.Create, 0, ""))
	require.NotNil(t, l.Document())

	l.Clear()
	require.Nil(t, l.Document())
	require.True(t, l.IsEmpty())
}

// Two replicas receiving the same operations in different orders converge to
// byte identical documents.
func Test_LWW_Convergence_RandomOrder(t *testing.T) {
	src := random.NewSeeded(42)

	ops := []types.Operation{
		mustOp(t, src.NewID(), types.Create, 0, ""),
		mustOp(t, src.NewID(), types.Update, 1, `[{"op":"add","path":"/a","value":1}]`),
		mustOp(t, src.NewID(), types.Update, 2, `[{"op":"add","path":"/b","value":{"c":[1,2]}}]`),
		mustOp(t, src.NewID(), types.Update, 3, `[{"op":"replace","path":"/a","value":5}]`),
		mustOp(t, src.NewID(), types.Update, 3, `[{"op":"remove","path":"/missing"}]`),
		mustOp(t, src.NewID(), types.Read, 4, ""),
		mustOp(t, src.NewID(), types.Update, 5, `[{"op":"add","path":"/b/c/-","value":3}]`),
	}
	removed := ops[3]

	reference := newTestLWW()
	for _, op := range ops {
		reference.Add(op)
	}
	reference.Remove(removed)

	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		perm := rnd.Perm(len(ops) + 1)

		replica := newTestLWW()
		for _, idx := range perm {
			if idx == len(ops) {
				replica.Remove(removed)
				continue
			}
			replica.Add(ops[idx])
		}

		require.True(t, replica.Equal(reference))
		require.Equal(t, string(reference.Document()), string(replica.Document()))
		require.Equal(t, reference.Quarantined(), replica.Quarantined())
	}

	require.JSONEq(t, `{"a":1,"b":{"c":[1,2,3]}}`, string(reference.Document()))
	require.Len(t, reference.Quarantined(), 1)
}
