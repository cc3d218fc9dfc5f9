package types

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePatcher struct {
	err error
}

func (f fakePatcher) Apply(doc Document, patch []byte) (Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return Document(string(doc) + string(patch)), nil
}

func Test_Operation_Construction(t *testing.T) {
	_, err := NewOperation("", Create, 0, nil)
	require.ErrorIs(t, err, ErrMissingID)

	_, err = NewOperation("a", Create, -1, nil)
	require.ErrorIs(t, err, ErrNegativeTimestamp)

	_, err = NewOperation("a", OperationKind(9), 0, nil)
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = NewOperation("a", Update, 0, nil)
	require.ErrorIs(t, err, ErrPayloadMismatch)

	_, err = NewOperation("a", Delete, 0, []byte(`[]`))
	require.ErrorIs(t, err, ErrPayloadMismatch)

	op, err := NewOperation("a", Update, 3, []byte(`[]`))
	require.NoError(t, err)
	require.True(t, op.HasPayload())
	require.NoError(t, op.Validate())
}

func Test_Operation_ParseKind(t *testing.T) {
	for _, k := range Kinds {
		parsed, err := ParseOperationKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}

	_, err := ParseOperationKind("merge")
	require.ErrorIs(t, err, ErrUnknownKind)
}

// Operations with the same timestamp sort by kind, then id, then payload.
func Test_Operation_Ordering_Ties(t *testing.T) {
	upd1, _ := NewOperation("b", Update, 5, []byte(`[{"op":"add","path":"/x","value":1}]`))
	upd2, _ := NewOperation("b", Update, 5, []byte(`[{"op":"add","path":"/x","value":2}]`))
	create, _ := NewOperation("z", Create, 5, nil)
	del, _ := NewOperation("a", Delete, 5, nil)
	read, _ := NewOperation("c", Read, 5, nil)
	early, _ := NewOperation("y", Delete, 1, nil)

	ops := []Operation{del, upd2, read, upd1, create, early}
	rev := slices.Clone(ops)
	slices.Reverse(rev)

	slices.SortFunc(ops, Compare)
	slices.SortFunc(rev, Compare)
	require.Equal(t, ops, rev)

	require.Equal(t, early, ops[0])
	require.Equal(t, create, ops[1])
	require.Equal(t, read, ops[2])
	require.Equal(t, Update, ops[3].Kind)
	require.Equal(t, Update, ops[4].Kind)
	require.Equal(t, del, ops[5])

	for i := 0; i < len(ops)-1; i++ {
		require.Negative(t, Compare(ops[i], ops[i+1]))
	}
	require.Zero(t, Compare(upd1, upd1))
}

func Test_Operation_Apply(t *testing.T) {
	p := fakePatcher{}

	create, _ := NewOperation("c", Create, 0, nil)
	doc, err := create.Apply(Document(`{"a":1}`), p)
	require.NoError(t, err)
	require.Equal(t, Document("{}"), doc)

	read, _ := NewOperation("r", Read, 0, nil)
	doc, err = read.Apply(Document(`{"a":1}`), p)
	require.NoError(t, err)
	require.Equal(t, Document(`{"a":1}`), doc)

	del, _ := NewOperation("d", Delete, 0, nil)
	doc, err = del.Apply(Document(`{"a":1}`), p)
	require.NoError(t, err)
	require.True(t, doc.Absent())

	upd, _ := NewOperation("u", Update, 0, []byte(`[]`))
	_, err = upd.Apply(nil, p)
	require.ErrorIs(t, err, ErrAbsentDocument)

	_, err = upd.Apply(Document(`{}`), fakePatcher{err: errors.New("conflict")})
	require.ErrorIs(t, err, ErrInvalidOperation)

	doc, err = upd.Apply(Document(`{}`), p)
	require.NoError(t, err)
	require.Equal(t, Document(`{}[]`), doc)
}

func Test_Document_Equal(t *testing.T) {
	require.True(t, Document(nil).Equal(nil))
	require.False(t, Document(nil).Equal(Document("{}")))
	require.True(t, Document(`{"a":1}`).Equal(Document(`{"a":1}`)))
	require.Equal(t, "<absent>", Document(nil).String())
}

func Test_Operation_WithID(t *testing.T) {
	upd, _ := NewOperation("u", Update, 7, []byte(`[]`))
	cp := upd.WithID("v").WithPayload([]byte(`[{"op":"remove","path":"/a"}]`))

	require.Equal(t, "u", upd.ID)
	require.Equal(t, "v", cp.ID)
	require.Equal(t, upd.Timestamp, cp.Timestamp)
	require.NotEqual(t, upd, cp)
	require.NotZero(t, cp.PayloadHash())
	require.Zero(t, Operation{Kind: Read}.PayloadHash())
}

func Test_Envelope_Status(t *testing.T) {
	require.True(t, Pending.Valid())
	require.True(t, Approved.Valid())
	require.True(t, Rejected.Valid())
	require.False(t, Status(9).Valid())

	require.False(t, Pending.Terminal())
	require.True(t, Rejected.Terminal())
	require.Equal(t, "STATUS(9)", Status(9).String())
}
