package types

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// Status

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Approved:
		return "APPROVED"
	case Rejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("STATUS(%d)", uint8(s))
	}
}

// Valid tells if s is one of the known statuses.
func (s Status) Valid() bool {
	return s == Pending || s == Approved || s == Rejected
}

// Terminal tells if no further transition can happen from this status.
func (s Status) Terminal() bool {
	return s == Approved || s == Rejected
}

// -----------------------------------------------------------------------------
// OperationEnvelope

// NewEnvelope wraps an operation for the given object.
func NewEnvelope(envelopeID, objectID, origin string, status Status, op Operation) OperationEnvelope {
	return OperationEnvelope{
		EnvelopeID: envelopeID,
		ObjectID:   objectID,
		Origin:     origin,
		Status:     status,
		Operation:  op,
	}
}

// Name returns the envelope type name.
func (e OperationEnvelope) Name() string {
	return "operationenvelope"
}

// String implements fmt.Stringer.
func (e OperationEnvelope) String() string {
	return fmt.Sprintf("envelope{%s %s obj:%s from:%s}", e.Status, e.Operation, e.ObjectID, e.Origin)
}

// -----------------------------------------------------------------------------
// Message

// Name returns the message type name.
func (m Message) Name() string {
	return "message"
}

// String implements fmt.Stringer.
func (m Message) String() string {
	return fmt.Sprintf("message{%s->%s at %d: %s}", m.Source, m.Destination, m.DeliveryTime, m.Envelope)
}
