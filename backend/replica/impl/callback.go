package impl

import (
	"slices"

	"lww-crdt/backend/crdt"
	"lww-crdt/backend/patch"
	"lww-crdt/backend/types"

	"golang.org/x/xerrors"
)

// HandleEnvelope implements replica.Node. APPROVED and REJECTED envelopes go
// straight to the add-set and the remove-set. PENDING envelopes are stored
// as-is by shadow replicas and arbitrated by the owner.
func (n *node[T]) HandleEnvelope(env types.OperationEnvelope, pReject float64) ([]types.OperationEnvelope, error) {
	if err := env.Operation.Validate(); err != nil {
		return nil, xerrors.Errorf("malformed operation in %s: %w", env, err)
	}

	if !env.Status.Valid() {
		return nil, xerrors.Errorf("unknown status in %s", env)
	}

	mgr := n.managerFor(env.ObjectID)
	n.deliveries.Record(env)

	switch env.Status {
	case types.Approved:
		mgr.CRDT().Add(env.Operation)
		return nil, nil
	case types.Rejected:
		mgr.CRDT().Remove(env.Operation)
		return nil, nil
	case types.Pending:
		if !n.IsOwner(env.ObjectID) {
			mgr.CRDT().Add(env.Operation)
			return nil, nil
		}
		return n.arbitrate(mgr, env, pReject), nil
	default:
		return nil, xerrors.Errorf("unknown status in %s", env)
	}
}

// arbitrate applies a PENDING operation at the owner. It always answers with
// a REJECTED copy of the operation so that every remove-set records it, and,
// with probability 1-pReject and only if adding the operation put nothing new
// in quarantine, with an APPROVED re-identified copy. An operation that breaks
// later ones is as invalid as one that fails to apply itself. For updates the
// approved payload is the diff the operation actually produced on the owner's
// document at its timestamp.
func (n *node[T]) arbitrate(mgr crdt.Manager[T], env types.OperationEnvelope, pReject float64) []types.OperationEnvelope {
	op := env.Operation
	lww := mgr.CRDT()

	before := lww.DocumentAsOf(op.Timestamp)
	prior := lww.Quarantined()
	lww.Add(op)
	trial := lww.TrialAsOf(op.Timestamp)

	rejected := n.wrap(env.ObjectID, types.Rejected, op)
	rejected.CausedBy = env.EnvelopeID
	out := []types.OperationEnvelope{rejected}

	for _, q := range lww.Quarantined() {
		if !slices.Contains(prior, q) {
			n.log.Info().Msgf("rejecting %s: it quarantines %s", env, q)
			return out
		}
	}
	if n.conf.Random.Float64() < pReject {
		n.log.Info().Msgf("rejecting %s", env)
		return out
	}

	approvedOp := op.WithID(n.conf.Random.NewID())
	if op.Kind == types.Update && before != nil && trial.Document != nil {
		raw, err := mgr.Diff(before, trial.Document)
		if err != nil {
			n.log.Error().Err(err).Msgf("failed to recompute diff of %s", env)
			return out
		}
		if raw == nil {
			raw = patch.EmptyPatch
		}
		approvedOp = approvedOp.WithPayload(raw)
	}

	approved := n.wrap(env.ObjectID, types.Approved, approvedOp)
	approved.CausedBy = env.EnvelopeID
	n.log.Info().Msgf("approving %s as %s", env, approvedOp)

	return append(out, approved)
}
