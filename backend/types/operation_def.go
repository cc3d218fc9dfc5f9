package types

import (
	"math"

	"golang.org/x/xerrors"
)

// OperationKind is the kind of change an Operation carries. The declaration
// order is the stable kind order used to break timestamp ties.
type OperationKind uint8

const (
	Create OperationKind = iota
	Read
	Update
	Delete
)

// Kinds lists every operation kind in tie-break order.
var Kinds = []OperationKind{Create, Read, Update, Delete}

// Latest is the timestamp that stands for "now".
const Latest int64 = math.MaxInt64

// Document is a JSON encoded tree value. A nil Document is absent.
type Document []byte

// Operation is an immutable unit of change. Two operations are equal iff all
// four fields are equal, so Operation can be used directly as a set key.
//
// Payload holds an RFC 6902 JSON Patch and is non-empty iff Kind is Update.
type Operation struct {
	ID        string        `msgpack:"id"`
	Kind      OperationKind `msgpack:"kind"`
	Timestamp int64         `msgpack:"ts"`
	Payload   string        `msgpack:"payload,omitempty"`
}

// Patcher applies a structural diff to a document.
type Patcher interface {
	Apply(doc Document, patch []byte) (Document, error)
}

var (
	// ErrMissingID is returned when an operation is built without an id.
	ErrMissingID = xerrors.New("operation id is missing")
	// ErrNegativeTimestamp is returned for timestamps below zero.
	ErrNegativeTimestamp = xerrors.New("operation timestamp is negative")
	// ErrUnknownKind is returned for kinds outside Create..Delete.
	ErrUnknownKind = xerrors.New("unknown operation kind")
	// ErrPayloadMismatch is returned when a payload is given to a non-update
	// operation or is missing from an update.
	ErrPayloadMismatch = xerrors.New("payload must be present iff kind is UPDATE")

	// ErrAbsentDocument is returned when an update targets an absent document.
	ErrAbsentDocument = xerrors.New("cannot update an absent document")
	// ErrInvalidOperation wraps structural failures while applying a patch.
	ErrInvalidOperation = xerrors.New("invalid operation")
)
