package impl

import (
	"io"
	"os"
	"time"

	"lww-crdt/backend/crdt"
	"lww-crdt/backend/patch"
	"lww-crdt/internal/random"

	"github.com/rs/zerolog"
)

var logIO = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// NewManager creates a manager for the object with the given id.
func NewManager[T any](objectID string, conf crdt.Configuration[T]) crdt.Manager[T] {
	var logger zerolog.Logger
	if conf.Logger != nil {
		logger = *conf.Logger
	} else {
		logger = newLogger(logIO, conf.LogLevel)
	}
	logger = logger.With().Str("object", objectID).Logger()
	logCRDT := logger.With().Str("component", "lww").Logger()

	codec := conf.Codec
	if codec == nil {
		codec = patch.NewJSONCodec[T]()
	}

	differ := conf.Differ
	if differ == nil {
		differ = patch.New()
	}

	ids := conf.IDs
	if ids == nil {
		ids = random.XID{}
	}

	return &manager[T]{
		objectID: objectID,
		crdt:     NewLastWriterWins(differ, logCRDT),
		codec:    codec,
		differ:   differ,
		ids:      ids,
		log:      logger,
	}
}

// Helper functions

func newLogger(io io.Writer, level zerolog.Level) zerolog.Logger {
	logger := zerolog.New(io).With().Timestamp().Logger()
	return logger.Level(level)
}
