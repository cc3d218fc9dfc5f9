package transport

import (
	"lww-crdt/backend/types"
	"lww-crdt/internal/random"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

var (
	// ErrQueueEmpty is returned when no message is waiting for delivery.
	ErrQueueEmpty = xerrors.New("no message to deliver")

	// ErrUnknownDestination is returned when a message targets a node that is
	// not registered.
	ErrUnknownDestination = xerrors.New("unknown destination")
)

// Handler is a node reachable through a router.
type Handler interface {
	// ID returns the address of the node.
	ID() string

	// HandleEnvelope processes a delivered envelope and returns the envelopes
	// to broadcast in response.
	HandleEnvelope(env types.OperationEnvelope, pReject float64) ([]types.OperationEnvelope, error)
}

// Router delivers envelopes between nodes on a logical clock. Messages are
// delivered in (delivery time, operation timestamp, enqueue order) order.
type Router interface {
	// Register makes a node reachable. Registering the same id twice
	// replaces the handler.
	Register(h Handler)

	// Nodes returns the registered node ids, in registration order.
	Nodes() []string

	// Broadcast builds one message per registered node, the source included,
	// each delivered after a random latency. The messages are not enqueued.
	Broadcast(source string, envs []types.OperationEnvelope, now int64) []types.Message

	// Enqueue schedules messages for delivery.
	Enqueue(msgs ...types.Message) error

	// DeliverNext delivers the earliest message, advances the clock to its
	// delivery time and returns the delivered message along with the
	// messages broadcast in response. The caller enqueues the responses.
	DeliverNext(pReject float64) (types.Message, []types.Message, error)

	// Len returns the number of messages waiting for delivery.
	Len() int

	// Now returns the logical clock.
	Now() int64

	// GetIns returns a copy of the delivered messages.
	GetIns() []types.Message

	// GetOuts returns a copy of the enqueued messages.
	GetOuts() []types.Message

	// Clear drops every pending message, the logs and the handlers, and
	// resets the clock.
	Clear()
}

// Configuration of a router.
type Configuration struct {
	// Random draws the latency of each message.
	Random random.Source

	// MinLatency and MaxLatency bound the latency, inclusive.
	MinLatency int64
	MaxLatency int64

	// Logger defaults to a console logger at LogLevel.
	Logger *zerolog.Logger

	// LogLevel is the level of the default logger.
	LogLevel zerolog.Level
}
