package types

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"
	"golang.org/x/xerrors"
)

// -----------------------------------------------------------------------------
// OperationKind

// String implements fmt.Stringer.
func (k OperationKind) String() string {
	switch k {
	case Create:
		return "CREATE"
	case Read:
		return "READ"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// Valid tells if the kind is one of the four known kinds.
func (k OperationKind) Valid() bool {
	return k <= Delete
}

// ParseOperationKind is the inverse of OperationKind.String.
func ParseOperationKind(s string) (OperationKind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(k.String(), s) {
			return k, nil
		}
	}
	return 0, xerrors.Errorf("%q: %w", s, ErrUnknownKind)
}

// -----------------------------------------------------------------------------
// Operation

// NewOperation validates and builds an operation. The payload must be given
// iff kind is Update.
func NewOperation(id string, kind OperationKind, timestamp int64, payload []byte) (Operation, error) {
	if id == "" {
		return Operation{}, ErrMissingID
	}
	if timestamp < 0 {
		return Operation{}, xerrors.Errorf("%d: %w", timestamp, ErrNegativeTimestamp)
	}
	if !kind.Valid() {
		return Operation{}, xerrors.Errorf("%d: %w", kind, ErrUnknownKind)
	}
	if (len(payload) > 0) != (kind == Update) {
		return Operation{}, xerrors.Errorf("%s with %d payload bytes: %w", kind, len(payload), ErrPayloadMismatch)
	}

	return Operation{
		ID:        id,
		Kind:      kind,
		Timestamp: timestamp,
		Payload:   string(payload),
	}, nil
}

// Validate checks the construction invariants on an operation that was
// decoded rather than built with NewOperation.
func (o Operation) Validate() error {
	_, err := NewOperation(o.ID, o.Kind, o.Timestamp, []byte(o.Payload))
	return err
}

// HasPayload tells if the operation carries a structural diff.
func (o Operation) HasPayload() bool {
	return o.Payload != ""
}

// PayloadHash is the murmur3 hash of the payload, 0 when there is none.
func (o Operation) PayloadHash() uint64 {
	if !o.HasPayload() {
		return 0
	}
	return murmur3.Sum64([]byte(o.Payload))
}

// WithID returns a copy of the operation carrying a new id.
func (o Operation) WithID(id string) Operation {
	o.ID = id
	return o
}

// WithPayload returns a copy of an update carrying a new payload.
func (o Operation) WithPayload(payload []byte) Operation {
	o.Payload = string(payload)
	return o
}

// Apply returns the document obtained by applying the operation to doc.
// Failing to apply an update is reported as ErrAbsentDocument or
// ErrInvalidOperation; both are recoverable.
func (o Operation) Apply(doc Document, patcher Patcher) (Document, error) {
	switch o.Kind {
	case Create:
		return Document("{}"), nil
	case Read:
		return doc, nil
	case Update:
		if doc == nil {
			return nil, xerrors.Errorf("%s: %w", o, ErrAbsentDocument)
		}
		res, err := patcher.Apply(doc, []byte(o.Payload))
		if err != nil {
			return nil, xerrors.Errorf("%s: %v: %w", o, err, ErrInvalidOperation)
		}
		return res, nil
	case Delete:
		return nil, nil
	default:
		return nil, xerrors.Errorf("%s: %w", o, ErrUnknownKind)
	}
}

// String implements fmt.Stringer.
func (o Operation) String() string {
	return fmt.Sprintf("%s{id:%s, ts:%d}", o.Kind, o.ID, o.Timestamp)
}

// Compare orders operations by timestamp, kind, id and payload hash. The
// payload text breaks the remaining hash collisions so that only equal
// operations compare as 0.
func Compare(a, b Operation) int {
	if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.PayloadHash(), b.PayloadHash()); c != 0 {
		return c
	}
	return cmp.Compare(a.Payload, b.Payload)
}

// Less reports whether a sorts before b.
func Less(a, b Operation) bool {
	return Compare(a, b) < 0
}

// -----------------------------------------------------------------------------
// Document

// Absent tells if there is no document.
func (d Document) Absent() bool {
	return d == nil
}

// String implements fmt.Stringer.
func (d Document) String() string {
	if d == nil {
		return "<absent>"
	}
	return string(d)
}

// Equal compares two documents byte by byte. Two absent documents are equal.
func (d Document) Equal(other Document) bool {
	if d == nil || other == nil {
		return d == nil && other == nil
	}
	return string(d) == string(other)
}
