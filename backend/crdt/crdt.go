package crdt

import (
	"lww-crdt/backend/types"

	"golang.org/x/xerrors"
)

// ErrEmptyUpdate is returned when an update would not change the document.
// Callers suppress the update instead of emitting it.
var ErrEmptyUpdate = xerrors.New("update does not change the document")

// TwoSet defines a CRDT made of an add-set and a remove-set of operations.
// The effective set is add minus remove: removal always dominates.
type TwoSet interface {
	// Add inserts the operation in the add-set. It returns false if it was
	// already there.
	Add(op types.Operation) bool

	// Remove inserts the operation in the remove-set. It returns false if it
	// was already there.
	Remove(op types.Operation) bool

	// Effective returns add minus remove, sorted by the operation order.
	Effective() []types.Operation

	// Added returns the add-set, sorted.
	Added() []types.Operation

	// Removed returns the remove-set, sorted.
	Removed() []types.Operation

	// Contains tells if the operation is in the effective set.
	Contains(op types.Operation) bool

	// IsEmpty tells if the effective set is empty.
	IsEmpty() bool

	// Clear empties both sets.
	Clear()
}

// Trial is the document reconstructed from an effective set, together with
// the operations that failed to apply while reconstructing it.
type Trial struct {
	Document    types.Document
	Quarantined []types.Operation
}

// LastWriterWins is a TwoSet that replays its effective set in operation
// order to reconstruct a document.
type LastWriterWins interface {
	TwoSet

	// Document returns the current document, nil if absent.
	Document() types.Document

	// DocumentAsOf returns the document considering only operations with a
	// timestamp lower or equal to ts.
	DocumentAsOf(ts int64) types.Document

	// Trial returns the current document and quarantined operations.
	Trial() Trial

	// TrialAsOf is Trial restricted to operations up to ts.
	TrialAsOf(ts int64) Trial

	// Quarantined returns the operations that failed to apply.
	Quarantined() []types.Operation

	// IsQuarantined tells if the operation failed to apply.
	IsQuarantined(op types.Operation) bool

	// IsCreated tells if a CREATE is in the effective set.
	IsCreated() bool

	// IsDeleted tells if a DELETE is in the effective set.
	IsDeleted() bool

	// LatestKind returns the kind of the last effective operation that is
	// not a READ. The boolean is false when there is none.
	LatestKind() (types.OperationKind, bool)

	// Count returns the number of effective operations of a kind.
	Count(kind types.OperationKind) int

	// CountAdded returns the number of operations of a kind in the add-set.
	CountAdded(kind types.OperationKind) int

	// CountRemoved returns the number of operations of a kind in the
	// remove-set.
	CountRemoved(kind types.OperationKind) int

	// Equal tells if both add-sets and both remove-sets are equal.
	Equal(other LastWriterWins) bool
}

// Codec maps a typed object to and from a document.
type Codec[T any] interface {
	Encode(v T) (types.Document, error)
	Decode(doc types.Document) (T, error)
	TypeName() string
}

// Differ computes the structural diff between two documents. A nil patch
// means both documents are equal.
type Differ interface {
	types.Patcher
	Diff(before, after types.Document) ([]byte, error)
}

// IDGenerator returns unique identifiers.
type IDGenerator interface {
	NewID() string
}

// Manager binds one LastWriterWins instance to one logical object of type T.
type Manager[T any] interface {
	// ObjectID returns the id of the managed object.
	ObjectID() string

	// CRDT returns the underlying CRDT.
	CRDT() LastWriterWins

	// GenerateCreate returns a CREATE operation.
	GenerateCreate(ts int64) (types.Operation, error)

	// GenerateRead returns a READ operation.
	GenerateRead(ts int64) (types.Operation, error)

	// GenerateUpdate returns an UPDATE operation turning the current
	// document into value. It returns ErrEmptyUpdate if nothing changes.
	GenerateUpdate(ts int64, value T) (types.Operation, error)

	// GenerateDelete returns a DELETE operation.
	GenerateDelete(ts int64) (types.Operation, error)

	// Object returns the current object. The boolean is false if the object
	// is absent or the document does not decode into T.
	Object() (T, bool)

	// ObjectAsOf is Object at a given timestamp.
	ObjectAsOf(ts int64) (T, bool)

	// Diff computes the diff between two documents of this object.
	Diff(before, after types.Document) ([]byte, error)

	// TypeName returns the name of the bound object type.
	TypeName() string

	// Equal tells if both managers bind the same type and hold equal CRDTs.
	// Object ids are not compared.
	Equal(other Manager[T]) bool
}
