package replica

import (
	"lww-crdt/backend/crdt"
	"lww-crdt/backend/types"
	"lww-crdt/internal/random"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// ErrNoObject is returned when a node is asked to act on an object but does
// not replicate any.
var ErrNoObject = xerrors.New("node does not replicate any object")

// Mutator returns a modified copy of an object. It drives random updates.
type Mutator[T any] func(src random.Source, v T) T

// Node is a replica holding one CRDT manager per replicated object. Authoring
// methods return envelopes to broadcast to every node, the author included;
// the author does not apply them before they are delivered back.
type Node[T any] interface {
	// ID returns the identity of the node.
	ID() string

	// AddCRDT registers a manager. The first registration of an object id
	// records this node as its owner in the directory.
	AddCRDT(mgr crdt.Manager[T])

	// GetCRDT returns the manager of an object.
	GetCRDT(objectID string) (crdt.Manager[T], bool)

	// ObjectIDs returns the ids of the replicated objects, sorted.
	ObjectIDs() []string

	// PickRandomObjectID returns the id of a random replicated object.
	PickRandomObjectID() (string, error)

	// PickRandomCRDT returns the manager of a random replicated object.
	PickRandomCRDT() (crdt.Manager[T], error)

	// IsOwner tells if this node arbitrates the object.
	IsOwner(objectID string) bool

	// CreateObject creates a new object owned by this node. It returns an
	// APPROVED CREATE and an APPROVED UPDATE, both at ts, carrying value.
	CreateObject(ts int64, value T) ([]types.OperationEnvelope, error)

	// Recreate issues a CREATE for an existing object, PENDING when this node
	// is not its owner.
	Recreate(ts int64) ([]types.OperationEnvelope, error)

	// Read issues a READ on a random object.
	Read(ts int64) ([]types.OperationEnvelope, error)

	// Update applies mutate to a random available object and issues the
	// resulting UPDATE. Empty updates are suppressed.
	Update(ts int64, mutate Mutator[T]) ([]types.OperationEnvelope, error)

	// Delete issues a DELETE on a random object.
	Delete(ts int64) ([]types.OperationEnvelope, error)

	// HandleEnvelope applies a delivered envelope and returns the envelopes
	// the ownership protocol produces in response.
	HandleEnvelope(env types.OperationEnvelope, pReject float64) ([]types.OperationEnvelope, error)

	// Deliveries returns the delivery accounting of an object.
	Deliveries(objectID string) Deliveries

	// Clear forgets every object and the delivery accounting.
	Clear()
}

// Deliveries counts the envelopes delivered to a node for one object.
type Deliveries struct {
	ByKind   map[types.OperationKind]int
	ByStatus map[types.Status]int
}

// Total returns the number of deliveries.
func (d Deliveries) Total() int {
	total := 0
	for _, n := range d.ByKind {
		total += n
	}
	return total
}

// Directory maps object ids to their owner node. Entries are write-once.
type Directory interface {
	// Register records the owner of an object unless it is already known.
	// It returns the owner in effect.
	Register(objectID, nodeID string) string

	// Owner returns the owner of an object.
	Owner(objectID string) (string, bool)

	// Len returns the number of known objects.
	Len() int

	// Clear forgets every entry.
	Clear()
}

// Configuration of a node.
type Configuration[T any] struct {
	// ID is the identity of the node.
	ID string

	// Directory is the owner lookup shared by every node.
	Directory Directory

	// Random picks objects and accept/reject outcomes, and generates ids.
	Random random.Source

	// NewManager builds the manager of an object this node learns about.
	NewManager func(objectID string) crdt.Manager[T]

	// Logger defaults to a console logger at LogLevel.
	Logger *zerolog.Logger

	// LogLevel is the level of the default logger.
	LogLevel zerolog.Level
}
