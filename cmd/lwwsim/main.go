package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"lww-crdt/backend/config"
	"lww-crdt/backend/sim"
	"lww-crdt/internal/random"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"
)

// exitDiverged is the exit code of a run that violated an invariant.
const exitDiverged = 2

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lwwsim",
		Usage: "simulate replicas converging on last-writer-wins objects",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run one simulation and print its report",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "TOML configuration file",
					},
					&cli.Uint64Flag{
						Name:  "seed",
						Usage: "seed of the random source, 0 for a clock-seeded run",
					},
					&cli.IntFlag{
						Name:  "nodes",
						Usage: "number of replicas",
					},
					&cli.Float64Flag{
						Name:  "preject",
						Usage: "probability that an owner rejects a pending operation",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "trace, debug, info, warn or error",
					},
				},
				Action: run,
			},
		},
	}
}

func run(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}

	level, err := conf.Level()
	if err != nil {
		return err
	}
	logIO := zerolog.ConsoleWriter{
		Out:        c.App.ErrWriter,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(logIO).With().Timestamp().Logger().Level(level)

	var src random.Source
	if conf.Seed == 0 {
		src = random.NewLive()
	} else {
		src = random.NewSeeded(conf.Seed)
	}

	executive, err := sim.NewExecutive(sim.Configuration[sim.Profile]{
		Nodes:                conf.Nodes,
		Budgets:              conf.Budgets,
		PReject:              conf.PReject,
		NewObjectProbability: conf.NewObjectProbability,
		MinLatency:           conf.Latency.Min,
		MaxLatency:           conf.Latency.Max,
		Random:               src,
		Initial:              sim.NewProfile,
		Mutate:               sim.MutateProfile,
		Logger:               &logger,
	})
	if err != nil {
		return xerrors.Errorf("failed to create executive: %v", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	err = executive.Run(ctx)
	if err != nil {
		return xerrors.Errorf("simulation stopped: %v", err)
	}

	report := executive.Assess()
	fmt.Fprint(c.App.Writer, report)

	return verdict(report)
}

// verdict turns a report into the exit status of the run.
func verdict(report sim.Report) error {
	if !report.OK() {
		return cli.Exit(fmt.Sprintf("replicas did not converge: %v", report.Err()), exitDiverged)
	}
	return nil
}

// loadConfig reads the configuration file, if any, and applies the flags on
// top of it.
func loadConfig(c *cli.Context) (*config.Simulation, error) {
	conf := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		conf, err = config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if c.IsSet("seed") {
		conf.Seed = c.Uint64("seed")
	}
	if c.IsSet("nodes") {
		conf.Nodes = c.Int("nodes")
	}
	if c.IsSet("preject") {
		conf.PReject = c.Float64("preject")
	}
	if c.IsSet("log-level") {
		conf.LogLevel = c.String("log-level")
	}

	return conf, conf.Validate()
}
