package config

import (
	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// ErrInvalid is returned when a configuration value is out of range.
var ErrInvalid = xerrors.New("invalid configuration")

// Simulation holds the parameters of one simulation run, as read from the
// TOML config file.
type Simulation struct {
	// Seed of the random source. Zero seeds from the clock.
	Seed     uint64
	Nodes    int
	LogLevel string

	// PReject is the probability that an owner rejects a valid PENDING
	// operation.
	PReject float64

	// NewObjectProbability is the probability that a CREATE event creates a
	// new object rather than re-creating an existing one.
	NewObjectProbability float64

	Budgets Budgets
	Latency Latency
}

// Budgets is the number of events of each kind a run executes.
type Budgets struct {
	Create int
	Read   int
	Update int
	Delete int
}

// Latency bounds the delivery delay of messages, in logical time units.
type Latency struct {
	Min int64
	Max int64
}

// Default returns the configuration used when no file is given.
func Default() *Simulation {
	return &Simulation{
		Seed:                 1,
		Nodes:                3,
		LogLevel:             "warn",
		PReject:              0.2,
		NewObjectProbability: 0.3,
		Budgets: Budgets{
			Create: 10,
			Read:   20,
			Update: 50,
			Delete: 5,
		},
		Latency: Latency{
			Min: 1,
			Max: 10,
		},
	}
}

// LoadConfig reads the TOML file at path on top of the default
// configuration and validates the result.
func LoadConfig(path string) (*Simulation, error) {
	conf := Default()

	_, err := toml.DecodeFile(path, conf)
	if err != nil {
		return nil, xerrors.Errorf("failed to read TOML config file at '%s': %v", path, err)
	}

	err = conf.Validate()
	if err != nil {
		return nil, err
	}

	return conf, nil
}

// Validate checks that every value is in range.
func (s *Simulation) Validate() error {
	if s.Nodes < 1 {
		return xerrors.Errorf("nodes must be positive, got %d: %w", s.Nodes, ErrInvalid)
	}
	if s.PReject < 0 || s.PReject > 1 {
		return xerrors.Errorf("preject must be in [0,1], got %v: %w", s.PReject, ErrInvalid)
	}
	if s.NewObjectProbability < 0 || s.NewObjectProbability > 1 {
		return xerrors.Errorf("newobjectprobability must be in [0,1], got %v: %w", s.NewObjectProbability, ErrInvalid)
	}
	if s.Budgets.Create < 0 || s.Budgets.Read < 0 || s.Budgets.Update < 0 || s.Budgets.Delete < 0 {
		return xerrors.Errorf("budgets must not be negative: %w", ErrInvalid)
	}
	if s.Latency.Min < 0 || s.Latency.Max < s.Latency.Min {
		return xerrors.Errorf("latency range [%d,%d] is empty or negative: %w", s.Latency.Min, s.Latency.Max, ErrInvalid)
	}

	_, err := s.Level()
	return err
}

// Level parses the log level. An empty level means warn.
func (s *Simulation) Level() (zerolog.Level, error) {
	if s.LogLevel == "" {
		return zerolog.WarnLevel, nil
	}

	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil {
		return zerolog.NoLevel, xerrors.Errorf("log level %q: %w", s.LogLevel, ErrInvalid)
	}
	return level, nil
}
