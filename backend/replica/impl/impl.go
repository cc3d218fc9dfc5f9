package impl

import (
	"io"
	"os"
	"sync"
	"time"

	"lww-crdt/backend/crdt"
	"lww-crdt/backend/replica"
	"lww-crdt/backend/types"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

var logIO = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// NewNode creates a new replica node.
func NewNode[T any](conf replica.Configuration[T]) replica.Node[T] {
	var logger zerolog.Logger
	if conf.Logger != nil {
		logger = *conf.Logger
	} else {
		logger = newLogger(logIO, conf.LogLevel)
	}

	node := node[T]{
		conf:       conf,
		log:        logger.With().Str("node", conf.ID).Logger(),
		objects:    newObjects[T](),
		deliveries: newDeliveryLog(),
	}

	return &node
}

// Helper functions

func newLogger(io io.Writer, level zerolog.Level) zerolog.Logger {
	logger := zerolog.New(io).With().Timestamp().Logger()
	return logger.Level(level)
}

func newObjects[T any]() *Objects[T] {
	return &Objects[T]{
		mu:       sync.Mutex{},
		managers: make(map[string]crdt.Manager[T]),
	}
}

func newDeliveryLog() *DeliveryLog {
	return &DeliveryLog{
		mu:       sync.Mutex{},
		byKind:   make(map[string]map[types.OperationKind]int),
		byStatus: make(map[string]map[types.Status]int),
	}
}

// node implements a replica holding one CRDT manager per object.
//
// - implements replica.Node
type node[T any] struct {
	conf       replica.Configuration[T]
	log        zerolog.Logger
	objects    *Objects[T]
	deliveries *DeliveryLog
}

// ID implements replica.Node
func (n *node[T]) ID() string {
	return n.conf.ID
}

// AddCRDT implements replica.Node
func (n *node[T]) AddCRDT(mgr crdt.Manager[T]) {
	if !n.objects.Set(mgr) {
		n.log.Warn().Msgf("object %s is already replicated", mgr.ObjectID())
		return
	}

	owner := n.conf.Directory.Register(mgr.ObjectID(), n.conf.ID)
	n.log.Debug().Msgf("replicating object %s owned by %s", mgr.ObjectID(), owner)
}

// GetCRDT implements replica.Node
func (n *node[T]) GetCRDT(objectID string) (crdt.Manager[T], bool) {
	return n.objects.Get(objectID)
}

// ObjectIDs implements replica.Node
func (n *node[T]) ObjectIDs() []string {
	return n.objects.IDs()
}

// PickRandomObjectID implements replica.Node
func (n *node[T]) PickRandomObjectID() (string, error) {
	ids := n.objects.IDs()
	if len(ids) == 0 {
		return "", xerrors.Errorf("node %s: %w", n.conf.ID, replica.ErrNoObject)
	}
	return ids[n.conf.Random.Intn(len(ids))], nil
}

// PickRandomCRDT implements replica.Node
func (n *node[T]) PickRandomCRDT() (crdt.Manager[T], error) {
	objectID, err := n.PickRandomObjectID()
	if err != nil {
		return nil, err
	}
	mgr, _ := n.objects.Get(objectID)
	return mgr, nil
}

// IsOwner implements replica.Node
func (n *node[T]) IsOwner(objectID string) bool {
	owner, exists := n.conf.Directory.Owner(objectID)
	return exists && owner == n.conf.ID
}

// Deliveries implements replica.Node
func (n *node[T]) Deliveries(objectID string) replica.Deliveries {
	return n.deliveries.Get(objectID)
}

// Clear implements replica.Node
func (n *node[T]) Clear() {
	n.objects.Clear()
	n.deliveries.Clear()
}

// managerFor returns the manager of an object, creating a shadow replica
// the first time the node hears about it.
func (n *node[T]) managerFor(objectID string) crdt.Manager[T] {
	if mgr, exists := n.objects.Get(objectID); exists {
		return mgr
	}

	mgr := n.conf.NewManager(objectID)
	n.AddCRDT(mgr)
	return mgr
}

// wrap puts an operation in a new envelope authored by this node.
func (n *node[T]) wrap(objectID string, status types.Status, op types.Operation) types.OperationEnvelope {
	return types.NewEnvelope(n.conf.Random.NewID(), objectID, n.conf.ID, status, op)
}

// statusFor returns the status of operations this node authors on an object.
func (n *node[T]) statusFor(objectID string) types.Status {
	if n.IsOwner(objectID) {
		return types.Approved
	}
	return types.Pending
}
