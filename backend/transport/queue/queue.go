package queue

import (
	"container/heap"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"lww-crdt/backend/transport"
	"lww-crdt/backend/types"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/xerrors"
)

var logIO = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// NewRouter returns a new in-process router.
func NewRouter(conf transport.Configuration) transport.Router {
	var logger zerolog.Logger
	if conf.Logger != nil {
		logger = *conf.Logger
	} else {
		logger = newLogger(logIO, conf.LogLevel)
	}

	if conf.MaxLatency < conf.MinLatency {
		conf.MaxLatency = conf.MinLatency
	}

	return &Router{
		conf:     conf,
		log:      logger.With().Str("component", "router").Logger(),
		pending:  &messageHeap{},
		handlers: make(map[string]transport.Handler),
		ins:      make([]types.Message, 0),
		outs:     make([]types.Message, 0),
		mu:       sync.Mutex{},
	}
}

func newLogger(io io.Writer, level zerolog.Level) zerolog.Logger {
	logger := zerolog.New(io).With().Timestamp().Logger()
	return logger.Level(level)
}

// Router implements a time-ordered delivery queue between nodes of the same
// process. Messages are stored msgpack-encoded so that a delivered envelope
// never shares memory with the one that was sent.
//
// - implements transport.Router
type Router struct {
	conf     transport.Configuration
	log      zerolog.Logger
	pending  *messageHeap
	handlers map[string]transport.Handler
	order    []string
	now      int64
	seq      uint64
	ins      []types.Message
	outs     []types.Message
	mu       sync.Mutex
}

// Register implements transport.Router
func (r *Router) Register(h transport.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[h.ID()]; !exists {
		r.order = append(r.order, h.ID())
	}
	r.handlers[h.ID()] = h
}

// Nodes implements transport.Router
func (r *Router) Nodes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.order)
}

// Broadcast implements transport.Router
func (r *Router) Broadcast(source string, envs []types.OperationEnvelope, now int64) []types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := make([]types.Message, 0, len(envs)*len(r.order))
	for _, env := range envs {
		for _, dest := range r.order {
			msgs = append(msgs, types.Message{
				Source:       source,
				Destination:  dest,
				EnqueuedAt:   now,
				DeliveryTime: now + r.latency(),
				Envelope:     env,
			})
		}
	}
	return msgs
}

// Enqueue implements transport.Router
func (r *Router) Enqueue(msgs ...types.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, msg := range msgs {
		if msg.DeliveryTime < msg.EnqueuedAt {
			return xerrors.Errorf("%s is delivered before it is enqueued at %d", msg, msg.EnqueuedAt)
		}

		raw, err := msgpack.Marshal(&msg)
		if err != nil {
			return xerrors.Errorf("failed to encode %s: %w", msg, err)
		}

		heap.Push(r.pending, entry{
			deliveryTime: msg.DeliveryTime,
			timestamp:    msg.Envelope.Operation.Timestamp,
			seq:          r.seq,
			raw:          raw,
		})
		r.seq++
		r.outs = append(r.outs, msg)
	}
	return nil
}

// DeliverNext implements transport.Router
func (r *Router) DeliverNext(pReject float64) (types.Message, []types.Message, error) {
	msg, handler, err := r.pop()
	if err != nil {
		return msg, nil, err
	}

	r.log.Debug().Msgf("delivering %s", msg)

	envs, err := handler.HandleEnvelope(msg.Envelope, pReject)
	if err != nil {
		return msg, nil, xerrors.Errorf("node %s failed to handle %s: %w", msg.Destination, msg, err)
	}
	if len(envs) == 0 {
		return msg, nil, nil
	}

	return msg, r.Broadcast(msg.Destination, envs, msg.DeliveryTime), nil
}

// Len implements transport.Router
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.pending.Len()
}

// Now implements transport.Router
func (r *Router) Now() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.now
}

// GetIns implements transport.Router
func (r *Router) GetIns() []types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.ins)
}

// GetOuts implements transport.Router
func (r *Router) GetOuts() []types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.outs)
}

// Clear implements transport.Router
func (r *Router) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = &messageHeap{}
	clear(r.handlers)
	r.order = nil
	r.now = 0
	r.seq = 0
	r.ins = r.ins[:0]
	r.outs = r.outs[:0]
}

// pop removes the earliest message from the queue and advances the clock.
func (r *Router) pop() (types.Message, transport.Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending.Len() == 0 {
		return types.Message{}, nil, transport.ErrQueueEmpty
	}

	e := heap.Pop(r.pending).(entry)

	var msg types.Message
	err := msgpack.Unmarshal(e.raw, &msg)
	if err != nil {
		return types.Message{}, nil, xerrors.Errorf("failed to decode message: %w", err)
	}

	if msg.DeliveryTime > r.now {
		r.now = msg.DeliveryTime
	}
	r.ins = append(r.ins, msg)

	handler, exists := r.handlers[msg.Destination]
	if !exists {
		return msg, nil, xerrors.Errorf("%s: %w", msg.Destination, transport.ErrUnknownDestination)
	}

	return msg, handler, nil
}

// latency draws a latency in [MinLatency, MaxLatency]. Callers hold the lock.
func (r *Router) latency() int64 {
	span := r.conf.MaxLatency - r.conf.MinLatency
	if span <= 0 || r.conf.Random == nil {
		return r.conf.MinLatency
	}
	return r.conf.MinLatency + r.conf.Random.Int63n(span+1)
}

// entry is a queued message with its ordering keys.
type entry struct {
	deliveryTime int64
	timestamp    int64
	seq          uint64
	raw          []byte
}

// messageHeap implements heap.Interface
type messageHeap []entry

func (h messageHeap) Len() int {
	return len(h)
}

func (h messageHeap) Less(i, j int) bool {
	if h[i].deliveryTime != h[j].deliveryTime {
		return h[i].deliveryTime < h[j].deliveryTime
	}
	if h[i].timestamp != h[j].timestamp {
		return h[i].timestamp < h[j].timestamp
	}
	return h[i].seq < h[j].seq
}

func (h messageHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *messageHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
