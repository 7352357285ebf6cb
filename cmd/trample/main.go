// trample enumerates an AWS Organization's account hierarchy, assumes a
// role in each member account, and inventories its resources into
// per-account JSON files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/trample/trample/internal/aws"
	"github.com/trample/trample/internal/broker"
	"github.com/trample/trample/internal/collector"
	"github.com/trample/trample/internal/log"
	"github.com/trample/trample/internal/output"
	"github.com/trample/trample/internal/retry"
	"github.com/trample/trample/internal/runstate"
	"github.com/trample/trample/internal/walker"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "trample",
		Usage:   "Enumerate an AWS Organization and inventory member account resources",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "role",
				Value: "OrganizationAccountAccessRole",
				Usage: "role to assume in each member account",
			},
			&cli.StringFlag{
				Name:  "output",
				Value: "trample_results",
				Usage: "directory for per-account inventory files",
			},
			&cli.StringFlag{
				Name:  "resume",
				Usage: "state file of a previous run to resume from",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
			&cli.IntFlag{
				Name:  "workers",
				Value: 8,
				Usage: "concurrent account tasks",
			},
			&cli.IntFlag{
				Name:  "attempts",
				Value: 3,
				Usage: "attempts per throttled remote call",
			},
			&cli.DurationFlag{
				Name:  "retry-base",
				Value: 500 * time.Millisecond,
				Usage: "base delay for retry backoff",
			},
			&cli.FloatFlag{
				Name:  "assume-role-rate",
				Value: 5,
				Usage: "global assume-role calls per second",
			},
			&cli.DurationFlag{
				Name:  "call-timeout",
				Value: 30 * time.Second,
				Usage: "timeout per remote call",
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	log.InitLogger(cmd.Bool("verbose"))

	outDir := cmd.String("output")

	// Without --resume every run starts from a clean slate.
	statePath := cmd.String("resume")
	fresh := statePath == ""
	if fresh {
		statePath = filepath.Join(outDir, "trample_state.json")
	}

	writer, err := output.NewWriter(outDir)
	if err != nil {
		return err
	}

	lock, err := runstate.AcquireLock(statePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	if fresh {
		if err := os.Remove(statePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clearing previous state: %w", err)
		}
	}

	state, err := runstate.Load(statePath)
	if err != nil {
		return err
	}

	client, err := aws.NewClient(ctx)
	if err != nil {
		return err
	}

	policy := retry.DefaultPolicy()
	policy.Attempts = int(cmd.Int("attempts"))
	policy.BaseDelay = cmd.Duration("retry-base")
	callTimeout := cmd.Duration("call-timeout")

	b := broker.New(client, broker.Config{
		RoleName:      cmd.String("role"),
		RatePerSecond: cmd.Float("assume-role-rate"),
		Policy:        policy,
		CallTimeout:   callTimeout,
	})
	coll := collector.New(client, state, writer, collector.Config{
		Policy:      policy,
		CallTimeout: callTimeout,
	})
	w := walker.New(client, b, coll, state, collector.KindNames(), walker.Config{
		Workers:     int(cmd.Int("workers")),
		CallTimeout: callTimeout,
	})

	summary, err := w.Run(ctx)
	if err != nil {
		// Organization-level access failure is the only fatal walk error.
		return cli.Exit(err.Error(), 2)
	}

	log.Infof("run complete: %d accounts visited, %d skipped, %d assume-role failures, %d listing failures",
		summary.AccountsVisited, summary.AccountsSkipped, summary.AssumeRoleFailures, summary.ListingFailures)
	log.Infof("outcomes: %d done, %d denied, %d failed", summary.Done, summary.Denied, summary.Failed)

	if ctx.Err() != nil {
		log.Infof("interrupted; resume with --resume %s", statePath)
	}
	return nil
}
