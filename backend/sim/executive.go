package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"lww-crdt/backend/config"
	"lww-crdt/backend/crdt"
	crdtimpl "lww-crdt/backend/crdt/impl"
	"lww-crdt/backend/replica"
	replicaimpl "lww-crdt/backend/replica/impl"
	"lww-crdt/backend/transport"
	"lww-crdt/backend/transport/queue"
	"lww-crdt/backend/types"
	"lww-crdt/internal/random"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/xerrors"
)

var logIO = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Event is what a simulation tick does.
type Event int

const (
	CreateEvent Event = iota
	ReadEvent
	UpdateEvent
	DeleteEvent
	DeliverEvent
)

// String implements fmt.Stringer.
func (e Event) String() string {
	switch e {
	case CreateEvent:
		return "create"
	case ReadEvent:
		return "read"
	case UpdateEvent:
		return "update"
	case DeleteEvent:
		return "delete"
	case DeliverEvent:
		return "deliver"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// authoring lists the events that consume a budget.
var authoring = []Event{CreateEvent, ReadEvent, UpdateEvent, DeleteEvent}

// Configuration of a simulation over objects of type T.
type Configuration[T any] struct {
	// Nodes is the number of replicas.
	Nodes int

	// Budgets is the number of events of each authoring kind.
	Budgets config.Budgets

	// PReject is the probability that an owner rejects a valid PENDING
	// operation.
	PReject float64

	// NewObjectProbability is the probability that a CREATE event creates
	// a new object rather than re-creating a known one.
	NewObjectProbability float64

	// MinLatency and MaxLatency bound message delivery delays.
	MinLatency int64
	MaxLatency int64

	// Random drives every choice of the run. Use a seeded source for
	// reproducible runs.
	Random random.Source

	// Initial returns the value of a new object.
	Initial func(src random.Source) T

	// Mutate drives updates.
	Mutate replica.Mutator[T]

	// Codec defaults to JSON.
	Codec crdt.Codec[T]

	// MeterProvider defaults to the global provider.
	MeterProvider metric.MeterProvider

	// Logger defaults to a console logger at LogLevel.
	Logger *zerolog.Logger

	// LogLevel is the level of the default logger.
	LogLevel zerolog.Level
}

// NewExecutive returns an executive ready to run.
func NewExecutive[T any](conf Configuration[T]) (*Executive[T], error) {
	if conf.Nodes < 1 {
		return nil, xerrors.Errorf("a simulation needs at least one node, got %d", conf.Nodes)
	}
	if conf.Random == nil {
		return nil, xerrors.New("missing random source")
	}
	if conf.Initial == nil || conf.Mutate == nil {
		return nil, xerrors.New("missing object generator or mutator")
	}

	var logger zerolog.Logger
	if conf.Logger != nil {
		logger = *conf.Logger
	} else {
		logger = newLogger(logIO, conf.LogLevel)
	}

	e := &Executive[T]{
		conf: conf,
		log:  logger,
		logSim: logger.With().
			Str("component", "executive").
			Logger(),
	}

	metrics, err := newMetrics(conf.MeterProvider, e.quarantined)
	if err != nil {
		return nil, xerrors.Errorf("failed to create metrics: %v", err)
	}
	e.metrics = metrics

	e.Clear()
	return e, nil
}

func newLogger(io io.Writer, level zerolog.Level) zerolog.Logger {
	logger := zerolog.New(io).With().Timestamp().Logger()
	return logger.Level(level)
}

// Executive drives one simulation: it authors operations on random nodes and
// delivers the resulting messages until every budget is spent and no message
// is in flight. Executives share no state with each other.
type Executive[T any] struct {
	conf    Configuration[T]
	log     zerolog.Logger
	logSim  zerolog.Logger
	metrics Metrics

	directory *replicaimpl.Directory
	router    transport.Router
	nodes     []replica.Node[T]

	remaining map[Event]int
	now       int64
	ticks     int

	// last quarantine total seen by Assess, observed by the metrics
	lastQuarantined int64
}

// Clear resets the executive for a fresh run: new nodes, an empty directory,
// an empty router and full budgets.
func (e *Executive[T]) Clear() {
	e.directory = replicaimpl.NewDirectory()
	e.router = queue.NewRouter(transport.Configuration{
		Random:     e.conf.Random,
		MinLatency: e.conf.MinLatency,
		MaxLatency: e.conf.MaxLatency,
		Logger:     &e.log,
	})

	e.nodes = make([]replica.Node[T], e.conf.Nodes)
	for i := range e.nodes {
		node := replicaimpl.NewNode(replica.Configuration[T]{
			ID:         fmt.Sprintf("node-%d", i),
			Directory:  e.directory,
			Random:     e.conf.Random,
			NewManager: e.newManager,
			Logger:     &e.log,
		})
		e.nodes[i] = node
		e.router.Register(node)
	}

	e.remaining = map[Event]int{
		CreateEvent: e.conf.Budgets.Create,
		ReadEvent:   e.conf.Budgets.Read,
		UpdateEvent: e.conf.Budgets.Update,
		DeleteEvent: e.conf.Budgets.Delete,
	}
	e.now = 0
	e.ticks = 0
	e.lastQuarantined = 0
}

// Nodes returns the replicas of the run.
func (e *Executive[T]) Nodes() []replica.Node[T] {
	return e.nodes
}

// Router returns the router of the run.
func (e *Executive[T]) Router() transport.Router {
	return e.router
}

// Remaining returns the budget left for an event.
func (e *Executive[T]) Remaining(ev Event) int {
	if ev == DeliverEvent {
		return e.router.Len()
	}
	return e.remaining[ev]
}

// Ticks returns the number of executed ticks.
func (e *Executive[T]) Ticks() int {
	return e.ticks
}

// Run executes ticks until the simulation is over or ctx is done.
func (e *Executive[T]) Run(ctx context.Context) error {
	e.logSim.Info().Msgf("running %d nodes with budgets %+v", len(e.nodes), e.conf.Budgets)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		done, err := e.Step(ctx)
		if err != nil {
			return err
		}
		if done {
			e.logSim.Info().Msgf("run over after %d ticks", e.ticks)
			return nil
		}
	}
}

// Step executes one tick. It returns true when every budget is spent and no
// message is in flight.
func (e *Executive[T]) Step(ctx context.Context) (bool, error) {
	ev, ok := e.pickEvent()
	if !ok {
		return true, nil
	}

	e.ticks++
	e.now++
	if routerNow := e.router.Now(); routerNow > e.now {
		e.now = routerNow
	}

	if ev == DeliverEvent {
		return false, e.deliver(ctx)
	}

	// one unit is consumed whether or not the node could author anything
	e.remaining[ev]--

	node := e.nodes[e.conf.Random.Intn(len(e.nodes))]
	envs, err := e.author(node, ev)
	if errors.Is(err, replica.ErrNoObject) {
		e.logSim.Debug().Msgf("%s has no object to %s", node.ID(), ev)
		e.metrics.Skipped.Add(ctx, 1, eventAttr(ev))
		return false, nil
	}
	if err != nil {
		return false, xerrors.Errorf("%s on %s failed: %v", ev, node.ID(), err)
	}
	if len(envs) == 0 {
		e.metrics.Skipped.Add(ctx, 1, eventAttr(ev))
		return false, nil
	}

	for _, env := range envs {
		e.metrics.Authored.Add(ctx, 1, kindAttr(env.Operation.Kind))
		e.recordOutcome(ctx, env)
	}

	err = e.router.Enqueue(e.router.Broadcast(node.ID(), envs, e.now)...)
	if err != nil {
		return false, xerrors.Errorf("failed to enqueue: %v", err)
	}
	return false, nil
}

// pickEvent draws an event weighted by the remaining budgets and the number
// of messages in flight.
func (e *Executive[T]) pickEvent() (Event, bool) {
	weights := make([]int, 0, len(authoring)+1)
	total := 0
	for _, ev := range authoring {
		weights = append(weights, e.remaining[ev])
		total += e.remaining[ev]
	}
	weights = append(weights, e.router.Len())
	total += e.router.Len()

	if total == 0 {
		return 0, false
	}

	draw := e.conf.Random.Intn(total)
	for i, w := range weights {
		if draw < w {
			return Event(i), true
		}
		draw -= w
	}
	return DeliverEvent, true
}

func (e *Executive[T]) author(node replica.Node[T], ev Event) ([]types.OperationEnvelope, error) {
	switch ev {
	case CreateEvent:
		if len(node.ObjectIDs()) == 0 || e.conf.Random.Float64() < e.conf.NewObjectProbability {
			return node.CreateObject(e.now, e.conf.Initial(e.conf.Random))
		}
		return node.Recreate(e.now)
	case ReadEvent:
		return node.Read(e.now)
	case UpdateEvent:
		return node.Update(e.now, e.conf.Mutate)
	case DeleteEvent:
		return node.Delete(e.now)
	default:
		return nil, xerrors.Errorf("unexpected event %s", ev)
	}
}

func (e *Executive[T]) deliver(ctx context.Context) error {
	delivered, msgs, err := e.router.DeliverNext(e.conf.PReject)
	if err != nil {
		return xerrors.Errorf("failed to deliver: %v", err)
	}
	e.metrics.Delivered.Add(ctx, 1, deliveryAttrs(delivered.Envelope))

	// a response is broadcast to every node; count it once
	nodes := len(e.nodes)
	for i := 0; i < len(msgs); i += nodes {
		e.recordOutcome(ctx, msgs[i].Envelope)
	}

	err = e.router.Enqueue(msgs...)
	if err != nil {
		return xerrors.Errorf("failed to enqueue responses: %v", err)
	}
	return nil
}

func (e *Executive[T]) recordOutcome(ctx context.Context, env types.OperationEnvelope) {
	switch env.Status {
	case types.Approved:
		e.metrics.Approved.Add(ctx, 1, kindAttr(env.Operation.Kind))
	case types.Rejected:
		e.metrics.Rejected.Add(ctx, 1, kindAttr(env.Operation.Kind))
	}
}

func (e *Executive[T]) newManager(objectID string) crdt.Manager[T] {
	return crdtimpl.NewManager[T](objectID, crdt.Configuration[T]{
		Codec:  e.conf.Codec,
		IDs:    e.conf.Random,
		Logger: &e.log,
	})
}

func (e *Executive[T]) quarantined() int64 {
	return e.lastQuarantined
}
