package impl

import (
	"errors"

	"lww-crdt/backend/crdt"
	"lww-crdt/backend/replica"
	"lww-crdt/backend/types"

	"golang.org/x/xerrors"
)

// CreateObject implements replica.Node
func (n *node[T]) CreateObject(ts int64, value T) ([]types.OperationEnvelope, error) {
	objectID := n.conf.Random.NewID()
	mgr := n.conf.NewManager(objectID)
	n.AddCRDT(mgr)

	create, err := mgr.GenerateCreate(ts)
	if err != nil {
		return nil, xerrors.Errorf("failed to generate create: %v", err)
	}
	status := n.statusFor(objectID)
	envelopes := []types.OperationEnvelope{n.wrap(objectID, status, create)}

	// the update is diffed against the empty object the create establishes
	update, err := mgr.GenerateUpdate(ts, value)
	switch {
	case errors.Is(err, crdt.ErrEmptyUpdate):
	case err != nil:
		return nil, xerrors.Errorf("failed to generate initial update: %v", err)
	default:
		envelopes = append(envelopes, n.wrap(objectID, status, update))
	}

	n.log.Info().Msgf("created object %s at %d", objectID, ts)
	return envelopes, nil
}

// Recreate implements replica.Node
func (n *node[T]) Recreate(ts int64) ([]types.OperationEnvelope, error) {
	return n.author(ts, (crdt.Manager[T]).GenerateCreate)
}

// Read implements replica.Node
func (n *node[T]) Read(ts int64) ([]types.OperationEnvelope, error) {
	return n.author(ts, (crdt.Manager[T]).GenerateRead)
}

// Delete implements replica.Node
func (n *node[T]) Delete(ts int64) ([]types.OperationEnvelope, error) {
	return n.author(ts, (crdt.Manager[T]).GenerateDelete)
}

// Update implements replica.Node
func (n *node[T]) Update(ts int64, mutate replica.Mutator[T]) ([]types.OperationEnvelope, error) {
	mgr, err := n.PickRandomCRDT()
	if err != nil {
		return nil, err
	}

	current, ok := mgr.Object()
	if !ok {
		n.log.Debug().Msgf("skipping update of unavailable object %s", mgr.ObjectID())
		return nil, nil
	}

	op, err := mgr.GenerateUpdate(ts, mutate(n.conf.Random, current))
	if errors.Is(err, crdt.ErrEmptyUpdate) {
		n.log.Debug().Msgf("suppressing empty update of object %s", mgr.ObjectID())
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Errorf("failed to generate update: %v", err)
	}

	return []types.OperationEnvelope{n.wrap(mgr.ObjectID(), n.statusFor(mgr.ObjectID()), op)}, nil
}

// author generates a payload-less operation on a random object.
func (n *node[T]) author(ts int64, generate func(crdt.Manager[T], int64) (types.Operation, error)) ([]types.OperationEnvelope, error) {
	mgr, err := n.PickRandomCRDT()
	if err != nil {
		return nil, err
	}

	op, err := generate(mgr, ts)
	if err != nil {
		return nil, xerrors.Errorf("failed to generate operation: %v", err)
	}

	env := n.wrap(mgr.ObjectID(), n.statusFor(mgr.ObjectID()), op)
	n.log.Debug().Msgf("authored %s", env)
	return []types.OperationEnvelope{env}, nil
}
