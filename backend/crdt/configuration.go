package crdt

import (
	"github.com/rs/zerolog"
)

// Configuration is the configuration of a Manager. Nil fields get defaults
// from the constructor.
type Configuration[T any] struct {
	// Codec maps T to and from documents. Defaults to a JSON codec.
	Codec Codec[T]

	// Differ diffs and patches documents. Defaults to JSON Patch.
	Differ Differ

	// IDs generates operation ids. Defaults to globally unique xids.
	IDs IDGenerator

	// Logger is used for decode failures and quarantines. Defaults to a
	// console logger at LogLevel.
	Logger *zerolog.Logger

	// LogLevel is the level of the default logger.
	LogLevel zerolog.Level
}
