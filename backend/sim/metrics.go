package sim

import (
	"context"

	"lww-crdt/backend/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "lww-crdt/sim"

// Metrics holds the instruments of a simulation run.
type Metrics struct {
	Authored  metric.Int64Counter
	Delivered metric.Int64Counter
	Approved  metric.Int64Counter
	Rejected  metric.Int64Counter
	Skipped   metric.Int64Counter
}

// newMetrics creates the instruments on mp, or on the global provider when
// mp is nil. quarantined is observed as a gauge.
func newMetrics(mp metric.MeterProvider, quarantined func() int64) (Metrics, error) {
	var meter metric.Meter
	if mp != nil {
		meter = mp.Meter(meterName)
	} else {
		meter = otel.Meter(meterName)
	}

	authored, err := meter.Int64Counter("lww_operations_authored_total",
		metric.WithDescription("operations authored by nodes"))
	if err != nil {
		return Metrics{}, err
	}
	delivered, err := meter.Int64Counter("lww_envelopes_delivered_total",
		metric.WithDescription("envelopes delivered to nodes"))
	if err != nil {
		return Metrics{}, err
	}
	approved, err := meter.Int64Counter("lww_envelopes_approved_total",
		metric.WithDescription("APPROVED envelopes emitted"))
	if err != nil {
		return Metrics{}, err
	}
	rejected, err := meter.Int64Counter("lww_envelopes_rejected_total",
		metric.WithDescription("REJECTED envelopes emitted"))
	if err != nil {
		return Metrics{}, err
	}
	skipped, err := meter.Int64Counter("lww_events_skipped_total",
		metric.WithDescription("events that authored nothing"))
	if err != nil {
		return Metrics{}, err
	}

	_, err = meter.Int64ObservableGauge("lww_operations_quarantined",
		metric.WithDescription("quarantined operations at the last assessment"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(quarantined())
			return nil
		}))
	if err != nil {
		return Metrics{}, err
	}

	return Metrics{
		Authored:  authored,
		Delivered: delivered,
		Approved:  approved,
		Rejected:  rejected,
		Skipped:   skipped,
	}, nil
}

func kindAttr(kind types.OperationKind) metric.AddOption {
	return metric.WithAttributes(attribute.String("kind", kind.String()))
}

func eventAttr(ev Event) metric.AddOption {
	return metric.WithAttributes(attribute.String("event", ev.String()))
}

func deliveryAttrs(env types.OperationEnvelope) metric.AddOption {
	return metric.WithAttributes(
		attribute.String("kind", env.Operation.Kind.String()),
		attribute.String("status", env.Status.String()),
	)
}
