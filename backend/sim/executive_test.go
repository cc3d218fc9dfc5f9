package sim

import (
	"context"
	"testing"

	"lww-crdt/backend/config"
	"lww-crdt/backend/patch"
	"lww-crdt/backend/types"
	"lww-crdt/internal/random"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// ----- Helper functions -----

func newTestExecutive(t *testing.T, seed uint64, pReject float64, mp metric.MeterProvider) *Executive[Profile] {
	t.Helper()

	logger := zerolog.Nop()
	e, err := NewExecutive(Configuration[Profile]{
		Nodes: 4,
		Budgets: config.Budgets{
			Create: 8,
			Read:   10,
			Update: 40,
			Delete: 4,
		},
		PReject:              pReject,
		NewObjectProbability: 0.4,
		MinLatency:           1,
		MaxLatency:           6,
		Random:               random.NewSeeded(seed),
		Initial:              NewProfile,
		Mutate:               MutateProfile,
		MeterProvider:        mp,
		Logger:               &logger,
	})
	require.NoError(t, err)
	return e
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)

			total := int64(0)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

// ----- Tests -----

func Test_Executive_Converges(t *testing.T) {
	for _, pReject := range []float64{0, 0.3, 1} {
		e := newTestExecutive(t, 7, pReject, nil)

		require.NoError(t, e.Run(context.Background()))

		report := e.Assess()
		require.True(t, report.OK(), report.String())
		require.NoError(t, report.Err())
		require.Equal(t, 4, report.Nodes)
		require.Positive(t, report.Objects)
		require.Positive(t, report.Approved)
		require.Equal(t, 0, e.Router().Len())

		for _, ev := range authoring {
			require.Equal(t, 0, e.Remaining(ev))
		}
	}
}

func Test_Executive_RejectAll(t *testing.T) {
	e := newTestExecutive(t, 3, 1, nil)
	require.NoError(t, e.Run(context.Background()))
	report := e.Assess()
	require.True(t, report.OK(), report.String())

	// with every PENDING operation rejected, only owners make progress
	for _, node := range e.Nodes() {
		for _, objectID := range node.ObjectIDs() {
			mgr, _ := node.GetCRDT(objectID)
			for _, op := range mgr.CRDT().Removed() {
				require.False(t, mgr.CRDT().Contains(op))
			}
		}
	}
}

func Test_Executive_Deterministic(t *testing.T) {
	first := newTestExecutive(t, 11, 0.2, nil)
	second := newTestExecutive(t, 11, 0.2, nil)

	require.NoError(t, first.Run(context.Background()))
	require.NoError(t, second.Run(context.Background()))

	require.Equal(t, first.Assess(), second.Assess())
	require.Equal(t, first.Nodes()[0].ObjectIDs(), second.Nodes()[0].ObjectIDs())

	for _, objectID := range first.Nodes()[0].ObjectIDs() {
		a, _ := first.Nodes()[0].GetCRDT(objectID)
		b, _ := second.Nodes()[0].GetCRDT(objectID)
		require.True(t, a.Equal(b))
	}
}

func Test_Executive_Clear(t *testing.T) {
	e := newTestExecutive(t, 5, 0.2, nil)
	require.NoError(t, e.Run(context.Background()))
	require.Positive(t, e.Ticks())

	e.Clear()
	require.Equal(t, 0, e.Ticks())
	require.Equal(t, 0, e.Router().Len())
	require.Equal(t, 40, e.Remaining(UpdateEvent))
	require.Len(t, e.Router().Nodes(), 4)
	for _, node := range e.Nodes() {
		require.Empty(t, node.ObjectIDs())
	}

	// a cleared executive runs again
	require.NoError(t, e.Run(context.Background()))
	require.True(t, e.Assess().OK())
}

func Test_Executive_Cancel(t *testing.T) {
	e := newTestExecutive(t, 5, 0.2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, e.Run(ctx), context.Canceled)
	require.Equal(t, 0, e.Ticks())
}

func Test_Executive_NoBudget(t *testing.T) {
	logger := zerolog.Nop()
	e, err := NewExecutive(Configuration[Profile]{
		Nodes:   2,
		Random:  random.NewSeeded(1),
		Initial: NewProfile,
		Mutate:  MutateProfile,
		Logger:  &logger,
	})
	require.NoError(t, err)

	done, err := e.Step(context.Background())
	require.NoError(t, err)
	require.True(t, done)

	report := e.Assess()
	require.True(t, report.OK())
	require.Equal(t, 0, report.Objects)
}

func Test_Executive_InvalidConfiguration(t *testing.T) {
	_, err := NewExecutive(Configuration[Profile]{Nodes: 0})
	require.Error(t, err)

	_, err = NewExecutive(Configuration[Profile]{Nodes: 1, Initial: NewProfile, Mutate: MutateProfile})
	require.Error(t, err)

	_, err = NewExecutive(Configuration[Profile]{Nodes: 1, Random: random.NewSeeded(1)})
	require.Error(t, err)
}

func Test_Executive_InFlight(t *testing.T) {
	e := newTestExecutive(t, 9, 0, nil)

	// author until something is queued, then assess before delivering
	for e.Router().Len() == 0 {
		done, err := e.Step(context.Background())
		require.NoError(t, err)
		require.False(t, done)
	}

	report := e.Assess()
	require.False(t, report.OK())
	require.ErrorIs(t, report.Err(), ErrInFlight)
}

func Test_Executive_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	e := newTestExecutive(t, 13, 0.3, mp)
	require.NoError(t, e.Run(context.Background()))
	report := e.Assess()
	require.True(t, report.OK(), report.String())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	require.Equal(t, int64(report.Delivered*report.Nodes), sumOf(t, rm, "lww_envelopes_delivered_total"))
	require.Equal(t, int64(report.Approved), sumOf(t, rm, "lww_envelopes_approved_total"))
	require.Equal(t, int64(report.Rejected), sumOf(t, rm, "lww_envelopes_rejected_total"))
	require.Positive(t, sumOf(t, rm, "lww_operations_authored_total"))
}

func Test_Profile_Mutate(t *testing.T) {
	src := random.NewSeeded(2)
	codec := patch.NewJSONCodec[Profile]()

	p := NewProfile(src)
	original, err := codec.Encode(p)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		next := MutateProfile(src, p)

		// the input is left untouched
		again, err := codec.Encode(p)
		require.NoError(t, err)
		require.True(t, original.Equal(again))

		doc, err := codec.Encode(next)
		require.NoError(t, err)
		decoded, err := codec.Decode(doc)
		require.NoError(t, err)
		require.Equal(t, next, decoded)

		p = next
		original = doc
	}
}

func Test_Profile_ZeroValue(t *testing.T) {
	// a re-created object decodes from the empty document
	codec := patch.NewJSONCodec[Profile]()
	p, err := codec.Decode(types.Document("{}"))
	require.NoError(t, err)

	next := MutateProfile(random.NewSeeded(4), p)
	require.NotNil(t, next.Tags)
	require.NotNil(t, next.Attributes)
}
