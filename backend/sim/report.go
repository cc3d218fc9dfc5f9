package sim

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"lww-crdt/backend/crdt"
	"lww-crdt/backend/replica"
	"lww-crdt/backend/types"

	"golang.org/x/xerrors"
)

var (
	// ErrInFlight is reported when messages are still waiting for delivery.
	ErrInFlight = xerrors.New("messages still in flight")

	// ErrDiverged is reported when two nodes hold different states for the
	// same object.
	ErrDiverged = xerrors.New("replicas diverged")

	// ErrAccounting is reported when the deliveries to a node do not match
	// the content of its sets.
	ErrAccounting = xerrors.New("delivery accounting mismatch")

	// ErrDeletedPresent is reported when a deleted object still has a
	// document.
	ErrDeletedPresent = xerrors.New("deleted object has a document")
)

// Report summarizes a finished run.
type Report struct {
	Nodes   int
	Objects int
	Ticks   int

	// Deliveries and outcomes, as seen by one node.
	Delivered int
	Approved  int
	Rejected  int

	// Quarantined is the number of operations that failed to apply, over
	// every object.
	Quarantined int

	// Deleted is the number of objects whose latest operation is a DELETE.
	Deleted int

	Violations []error
}

// OK tells if no invariant was violated.
func (r Report) OK() bool {
	return len(r.Violations) == 0
}

// Err joins the violations, nil when there is none.
func (r Report) Err() error {
	return errors.Join(r.Violations...)
}

// String implements fmt.Stringer.
func (r Report) String() string {
	var out strings.Builder

	fmt.Fprintf(&out, "nodes:       %d\n", r.Nodes)
	fmt.Fprintf(&out, "objects:     %d (%d deleted)\n", r.Objects, r.Deleted)
	fmt.Fprintf(&out, "ticks:       %d\n", r.Ticks)
	fmt.Fprintf(&out, "delivered:   %d per node\n", r.Delivered)
	fmt.Fprintf(&out, "approved:    %d\n", r.Approved)
	fmt.Fprintf(&out, "rejected:    %d\n", r.Rejected)
	fmt.Fprintf(&out, "quarantined: %d\n", r.Quarantined)

	if r.OK() {
		out.WriteString("converged\n")
		return out.String()
	}

	fmt.Fprintf(&out, "%d violations:\n", len(r.Violations))
	for _, err := range r.Violations {
		fmt.Fprintf(&out, "  %v\n", err)
	}
	return out.String()
}

// Assess checks convergence and delivery accounting across every node.
// Violations are reported, never fatal.
func (e *Executive[T]) Assess() Report {
	report := Report{
		Nodes: len(e.nodes),
		Ticks: e.ticks,
	}

	if n := e.router.Len(); n > 0 {
		report.Violations = append(report.Violations, xerrors.Errorf("%d messages: %w", n, ErrInFlight))
	}

	objectIDs := map[string]struct{}{}
	for _, node := range e.nodes {
		for _, id := range node.ObjectIDs() {
			objectIDs[id] = struct{}{}
		}
	}
	report.Objects = len(objectIDs)

	reference := e.nodes[0]

	for _, objectID := range slices.Sorted(maps.Keys(objectIDs)) {
		ref, exists := reference.GetCRDT(objectID)
		if !exists {
			report.Violations = append(report.Violations,
				xerrors.Errorf("%s does not replicate %s: %w", reference.ID(), objectID, ErrDiverged))
			continue
		}

		for _, node := range e.nodes {
			mgr, exists := node.GetCRDT(objectID)
			if !exists {
				report.Violations = append(report.Violations,
					xerrors.Errorf("%s does not replicate %s: %w", node.ID(), objectID, ErrDiverged))
				continue
			}

			if node != reference {
				if !ref.Equal(mgr) {
					report.Violations = append(report.Violations,
						xerrors.Errorf("%s and %s disagree on the sets of %s: %w", reference.ID(), node.ID(), objectID, ErrDiverged))
				} else if !ref.CRDT().Document().Equal(mgr.CRDT().Document()) {
					report.Violations = append(report.Violations,
						xerrors.Errorf("%s and %s disagree on the document of %s: %w", reference.ID(), node.ID(), objectID, ErrDiverged))
				}
			}

			report.Violations = append(report.Violations, checkAccounting(node.ID(), objectID, mgr.CRDT(), node.Deliveries(objectID))...)

			if kind, ok := mgr.CRDT().LatestKind(); ok && kind == types.Delete && mgr.CRDT().Document() != nil {
				report.Violations = append(report.Violations,
					xerrors.Errorf("%s on %s: %w", objectID, node.ID(), ErrDeletedPresent))
			}
		}

		lww := ref.CRDT()
		report.Quarantined += len(lww.Quarantined())
		if kind, ok := lww.LatestKind(); ok && kind == types.Delete {
			report.Deleted++
		}

		deliveries := reference.Deliveries(objectID)
		report.Delivered += deliveries.Total()
		report.Approved += deliveries.ByStatus[types.Approved]
		report.Rejected += deliveries.ByStatus[types.Rejected]
	}

	e.lastQuarantined = int64(report.Quarantined)

	if report.OK() {
		e.logSim.Info().Msgf("run converged over %d objects", report.Objects)
	} else {
		e.logSim.Error().Err(report.Err()).Msgf("run has %d violations", len(report.Violations))
	}

	return report
}

// checkAccounting verifies that every delivered envelope landed in exactly
// one set: per kind, deliveries equal adds plus removes, and REJECTED
// deliveries equal the size of the remove-set.
func checkAccounting(nodeID, objectID string, lww crdt.LastWriterWins, deliveries replica.Deliveries) []error {
	var violations []error

	for _, kind := range types.Kinds {
		delivered := deliveries.ByKind[kind]
		stored := lww.CountAdded(kind) + lww.CountRemoved(kind)
		if delivered != stored {
			violations = append(violations, xerrors.Errorf("%s on %s: %d %s delivered, %d stored: %w",
				objectID, nodeID, delivered, kind, stored, ErrAccounting))
		}
	}

	if rejected, removed := deliveries.ByStatus[types.Rejected], len(lww.Removed()); rejected != removed {
		violations = append(violations, xerrors.Errorf("%s on %s: %d rejections delivered, %d removed: %w",
			objectID, nodeID, rejected, removed, ErrAccounting))
	}

	return violations
}
