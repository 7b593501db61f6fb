// Command arbiter plays connect-four matches between agents, proves that the
// recorded game is what the agents and the rules produce, and settles the
// proofs on an Ethereum ledger.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/dedis/zkarena/arbiter"
	"github.com/dedis/zkarena/connect4"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v1"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "arbiter"
	app.Usage = "play, prove and settle connect-four matches"
	app.Version = "0.1.0"
	app.Writer = out
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "TOML configuration file",
		},
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
	}
	app.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.GlobalInt("debug"))
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:   "play",
			Usage:  "simulate a match without proving it",
			Action: play,
		},
		{
			Name:   "run",
			Usage:  "simulate, verify, prove and settle a match",
			Action: run,
		},
		{
			Name:      "resubmit",
			Usage:     "send a stored bundle to the ledger again",
			ArgsUsage: "bundle-id",
			Action:    resubmit,
		},
		{
			Name:      "verify-proof",
			Usage:     "check the proofs of a stored bundle",
			ArgsUsage: "bundle-id",
			Action:    verifyStored,
		},
		{
			Name:   "list",
			Usage:  "list stored bundles",
			Action: list,
		},
		{
			Name:  "agents",
			Usage: "list the available agents",
			Action: func(c *cli.Context) error {
				fmt.Fprintln(c.App.Writer, strings.Join(arbiter.AgentNames(), "\n"))
				return nil
			},
		},
	}
	return app
}

func config(c *cli.Context) (*arbiter.Config, error) {
	if path := c.GlobalString("config"); path != "" {
		return arbiter.LoadConfig(path)
	}
	return arbiter.DefaultConfig(), nil
}

// open builds the arbiter and a context canceled on interrupt.
func open(c *cli.Context) (*arbiter.Arbiter, context.Context, func(), error) {
	cfg, err := config(c)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	a, err := arbiter.New(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return a, ctx, func() {
		if err := a.Close(ctx); err != nil {
			log.Error(err)
		}
		cancel()
	}, nil
}

func bundleID(c *cli.Context) ([]byte, error) {
	if c.NArg() != 1 {
		return nil, xerrors.New("please give the bundle id")
	}
	id, err := hex.DecodeString(c.Args().First())
	if err != nil {
		return nil, xerrors.Errorf("invalid bundle id: %v", err)
	}
	return id, nil
}

func play(c *cli.Context) error {
	a, _, done, err := open(c)
	if err != nil {
		return err
	}
	defer done()
	_, rec, err := a.Simulate()
	if err != nil {
		return err
	}
	s := rec.Final.(*connect4.State)
	fmt.Fprint(c.App.Writer, connect4.Render(s))
	fmt.Fprintf(c.App.Writer, "moves: %v\nwinner: %d\n", rec.Moves(), s.Winner)
	return nil
}

func run(c *cli.Context) error {
	a, ctx, done, err := open(c)
	if err != nil {
		return err
	}
	defer done()
	res, err := a.Run(ctx)
	if res != nil && res.ID != nil {
		fmt.Fprintf(c.App.Writer, "bundle: %x\nsettled: %v\n", res.ID, res.Settled)
	}
	return err
}

func resubmit(c *cli.Context) error {
	id, err := bundleID(c)
	if err != nil {
		return err
	}
	a, ctx, done, err := open(c)
	if err != nil {
		return err
	}
	defer done()
	return a.Resubmit(ctx, id)
}

func verifyStored(c *cli.Context) error {
	id, err := bundleID(c)
	if err != nil {
		return err
	}
	a, _, done, err := open(c)
	if err != nil {
		return err
	}
	defer done()
	if err := a.VerifyStored(id); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "all proofs verify")
	return nil
}

func list(c *cli.Context) error {
	a, _, done, err := open(c)
	if err != nil {
		return err
	}
	defer done()
	if a.Store == nil {
		return xerrors.New("no store configured")
	}
	ids, err := a.Store.IDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		e, err := a.Store.Get(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%x settled=%v\n", id, e.Settled)
	}
	return nil
}
