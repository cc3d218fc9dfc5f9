package impl

import (
	"maps"
	"slices"
	"sync"

	"lww-crdt/backend/crdt"
	"lww-crdt/backend/replica"
	"lww-crdt/backend/types"
)

// Directory is the write-once owner lookup shared by every node.
//
// - implements replica.Directory
type Directory struct {
	mu     sync.Mutex
	owners map[string]string // objectID -> owner nodeID
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		mu:     sync.Mutex{},
		owners: make(map[string]string),
	}
}

// Register implements replica.Directory
func (d *Directory) Register(objectID, nodeID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if owner, exists := d.owners[objectID]; exists {
		return owner
	}
	d.owners[objectID] = nodeID
	return nodeID
}

// Owner implements replica.Directory
func (d *Directory) Owner(objectID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	owner, exists := d.owners[objectID]
	return owner, exists
}

// Len implements replica.Directory
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.owners)
}

// Clear implements replica.Directory
func (d *Directory) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	clear(d.owners)
}

// Objects holds the managers of the objects a node replicates.
type Objects[T any] struct {
	mu       sync.Mutex
	managers map[string]crdt.Manager[T]
}

// Get returns the manager of an object.
func (o *Objects[T]) Get(objectID string) (crdt.Manager[T], bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	mgr, exists := o.managers[objectID]
	return mgr, exists
}

// Set registers a manager. It returns false if the object was already known.
func (o *Objects[T]) Set(mgr crdt.Manager[T]) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.managers[mgr.ObjectID()]; exists {
		return false
	}
	o.managers[mgr.ObjectID()] = mgr
	return true
}

// IDs returns the sorted object ids so that random picks are reproducible.
func (o *Objects[T]) IDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	return slices.Sorted(maps.Keys(o.managers))
}

// Clear forgets every manager.
func (o *Objects[T]) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()

	clear(o.managers)
}

// DeliveryLog counts delivered envelopes per object.
type DeliveryLog struct {
	mu       sync.Mutex
	byKind   map[string]map[types.OperationKind]int
	byStatus map[string]map[types.Status]int
}

// Record counts one delivered envelope.
func (d *DeliveryLog) Record(env types.OperationEnvelope) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byKind[env.ObjectID]; !exists {
		d.byKind[env.ObjectID] = make(map[types.OperationKind]int)
		d.byStatus[env.ObjectID] = make(map[types.Status]int)
	}
	d.byKind[env.ObjectID][env.Operation.Kind]++
	d.byStatus[env.ObjectID][env.Status]++
}

// Get returns a copy of the counters of an object.
func (d *DeliveryLog) Get(objectID string) replica.Deliveries {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := replica.Deliveries{
		ByKind:   make(map[types.OperationKind]int),
		ByStatus: make(map[types.Status]int),
	}
	maps.Copy(res.ByKind, d.byKind[objectID])
	maps.Copy(res.ByStatus, d.byStatus[objectID])
	return res
}

// Clear resets every counter.
func (d *DeliveryLog) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	clear(d.byKind)
	clear(d.byStatus)
}
