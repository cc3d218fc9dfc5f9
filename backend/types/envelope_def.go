package types

// Status is the ratification state of an operation in flight.
type Status uint8

const (
	// Pending operations are not yet ratified by the object owner.
	Pending Status = iota
	// Approved operations go to the add-set of every replica.
	Approved
	// Rejected operations go to the remove-set of every replica.
	Rejected
)

// OperationEnvelope wraps an operation with its target object and its
// ratification status.
type OperationEnvelope struct {
	EnvelopeID string    `msgpack:"envelope_id"`
	ObjectID   string    `msgpack:"object_id"`
	Origin     string    `msgpack:"origin"`
	Status     Status    `msgpack:"status"`
	Operation  Operation `msgpack:"operation"`
	CausedBy   string    `msgpack:"caused_by,omitempty"` // envelope that triggered this one
}

// Message is an envelope travelling from one node to another. DeliveryTime is
// never before EnqueuedAt.
type Message struct {
	Source       string            `msgpack:"source"`
	Destination  string            `msgpack:"destination"`
	EnqueuedAt   int64             `msgpack:"enqueued_at"`
	DeliveryTime int64             `msgpack:"delivery_time"`
	Envelope     OperationEnvelope `msgpack:"envelope"`
}
