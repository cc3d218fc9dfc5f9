package impl

import (
	"lww-crdt/backend/crdt"
	"lww-crdt/backend/types"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// emptyObject is the document a CREATE establishes.
var emptyObject = types.Document("{}")

// manager implements crdt.Manager on top of LastWriterWins.
//
// - implements crdt.Manager
type manager[T any] struct {
	objectID string
	crdt     *LastWriterWins
	codec    crdt.Codec[T]
	differ   crdt.Differ
	ids      crdt.IDGenerator
	log      zerolog.Logger
}

// ObjectID implements crdt.Manager
func (m *manager[T]) ObjectID() string {
	return m.objectID
}

// CRDT implements crdt.Manager
func (m *manager[T]) CRDT() crdt.LastWriterWins {
	return m.crdt
}

// TypeName implements crdt.Manager
func (m *manager[T]) TypeName() string {
	return m.codec.TypeName()
}

// GenerateCreate implements crdt.Manager
func (m *manager[T]) GenerateCreate(ts int64) (types.Operation, error) {
	return types.NewOperation(m.ids.NewID(), types.Create, ts, nil)
}

// GenerateRead implements crdt.Manager
func (m *manager[T]) GenerateRead(ts int64) (types.Operation, error) {
	return types.NewOperation(m.ids.NewID(), types.Read, ts, nil)
}

// GenerateUpdate implements crdt.Manager. The diff is computed against the
// current document, or against the empty object a CREATE establishes when
// the document is absent.
func (m *manager[T]) GenerateUpdate(ts int64, value T) (types.Operation, error) {
	base := m.crdt.Document()
	if base == nil {
		base = emptyObject
	}

	target, err := m.codec.Encode(value)
	if err != nil {
		return types.Operation{}, xerrors.Errorf("failed to encode object %s: %w", m.objectID, err)
	}

	raw, err := m.differ.Diff(base, target)
	if err != nil {
		return types.Operation{}, xerrors.Errorf("failed to diff object %s: %w", m.objectID, err)
	}
	if raw == nil {
		return types.Operation{}, crdt.ErrEmptyUpdate
	}

	return types.NewOperation(m.ids.NewID(), types.Update, ts, raw)
}

// GenerateDelete implements crdt.Manager
func (m *manager[T]) GenerateDelete(ts int64) (types.Operation, error) {
	return types.NewOperation(m.ids.NewID(), types.Delete, ts, nil)
}

// Object implements crdt.Manager
func (m *manager[T]) Object() (T, bool) {
	return m.decode(m.crdt.Document())
}

// ObjectAsOf implements crdt.Manager
func (m *manager[T]) ObjectAsOf(ts int64) (T, bool) {
	return m.decode(m.crdt.DocumentAsOf(ts))
}

// Diff implements crdt.Manager
func (m *manager[T]) Diff(before, after types.Document) ([]byte, error) {
	return m.differ.Diff(before, after)
}

// Equal implements crdt.Manager. The object ids are not compared.
func (m *manager[T]) Equal(other crdt.Manager[T]) bool {
	if other == nil {
		return false
	}
	return m.TypeName() == other.TypeName() && m.crdt.Equal(other.CRDT())
}

// decode maps a document to T. A document that does not decode is logged
// and reported as unavailable, which is not the same as deleted.
func (m *manager[T]) decode(doc types.Document) (T, bool) {
	var zero T
	if doc == nil {
		return zero, false
	}

	v, err := m.codec.Decode(doc)
	if err != nil {
		m.log.Warn().Err(err).Msgf("object %s is unavailable", m.objectID)
		return zero, false
	}
	return v, true
}
