package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/goforj/godump"
	"github.com/urfave/cli/v3"

	"github.com/3s-rg-codes/lambda-relay/pkg/controller"
	"github.com/3s-rg-codes/lambda-relay/pkg/invocation"
	"github.com/3s-rg-codes/lambda-relay/pkg/relay"
	"github.com/3s-rg-codes/lambda-relay/pkg/utils"
)

var eventFlag = &cli.StringFlag{
	Name:    "event",
	Usage:   "event JSON passed to the child",
	Value:   "{}",
	Aliases: []string{"e"},
}

var contextFlag = &cli.StringFlag{
	Name:    "context",
	Usage:   "invocation context JSON, generated when empty",
	Aliases: []string{"c"},
}

var timeoutFlag = &cli.DurationFlag{
	Name:    "timeout",
	Usage:   "example: 30s, 1m, 1h",
	Aliases: []string{"t"},
	Value:   30 * time.Second,
}

var dumpFlag = &cli.BoolFlag{
	Name:  "dump",
	Usage: "dump the full result instead of printing the payload",
}

var addressFlag = &cli.StringFlag{
	Name:  "address",
	Value: "localhost:50060",
	Usage: "address of the relay server",
}

func main() {
	cmd := &cli.Command{
		Name:  "relay-cli",
		Usage: "run and inspect relayed invocations",
		Flags: []cli.Flag{timeoutFlag},
		Commands: []*cli.Command{
			{
				Name:      "exec",
				Usage:     "run a child executable through the relay without a server",
				ArgsUsage: "executable",
				Flags: []cli.Flag{
					eventFlag,
					contextFlag,
					dumpFlag,
					&cli.StringFlag{
						Name:  "workdir",
						Usage: "working directory of the child",
					},
					&cli.Int64Flag{
						Name:  "max-output",
						Usage: "maximum child stdout in bytes, negative for unbounded",
						Value: relay.DefaultMaxOutputBytes,
					},
					&cli.StringSliceFlag{
						Name:  "env",
						Usage: "KEY=VALUE added to the child environment",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Value: "warn",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					executable := cmd.Args().Get(0)
					if executable == "" {
						return cli.Exit("missing executable", 2)
					}
					event, invCtx, err := readDocuments(cmd)
					if err != nil {
						return err
					}

					logger := utils.SetupLogger(utils.LogConfig{Level: cmd.String("log-level"), Format: "dev", Output: os.Stderr})
					r := relay.New(relay.Config{
						Executable:     executable,
						WorkDir:        cmd.String("workdir"),
						Env:            cmd.StringSlice("env"),
						Timeout:        cmd.Duration("timeout"),
						MaxOutputBytes: cmd.Int64("max-output"),
					}, logger)

					var ctxArg any = invCtx
					if invCtx == nil {
						ctxArg = invocation.Local(ctx, executable)
					}
					rec := &invocation.Recorder{}
					outcome := invocation.Dispatch(ctx, r, ctxArg, event, rec)

					if cmd.Bool("dump") {
						godump.Dump(outcome)
					}
					return printResult(rec, string(outcome.Kind), cmd.Bool("dump"))
				},
			},
			{
				Name:      "call",
				Usage:     "invoke the child behind a relay server",
				Flags:     []cli.Flag{addressFlag, eventFlag, contextFlag, dumpFlag},
				ArgsUsage: " ",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					event, invCtx, err := readDocuments(cmd)
					if err != nil {
						return err
					}
					client, conn, err := controller.Dial(cmd.String("address"))
					if err != nil {
						return err
					}
					defer conn.Close()

					ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
					defer cancel()

					resp, err := client.Invoke(ctx, &controller.InvokeRequest{Context: invCtx, Event: event})
					if err != nil {
						return err
					}
					if cmd.Bool("dump") {
						godump.Dump(resp)
					}

					rec := &invocation.Recorder{}
					if resp.Succeeded() {
						rec.Succeed(resp.Payload)
					} else {
						rec.Fail(resp.Payload)
					}
					return printResult(rec, string(resp.Kind), cmd.Bool("dump"))
				},
			},
			{
				Name:      "status",
				Usage:     "read the status update stream",
				ArgsUsage: "node ID",
				Flags: []cli.Flag{
					addressFlag,
					&cli.DurationFlag{
						Name:  "duration",
						Usage: "duration of the stream",
						Value: 10 * time.Second,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					nodeID := cmd.Args().Get(0)
					if nodeID == "" {
						nodeID = "relay-cli"
					}
					client, conn, err := controller.Dial(cmd.String("address"))
					if err != nil {
						return err
					}
					defer conn.Close()

					ctx, cancel := context.WithTimeout(ctx, cmd.Duration("duration"))
					defer cancel()

					err = client.Status(ctx, nodeID, func(ev *controller.StatusEvent) error {
						fmt.Printf("%s %s %s %s kind=%s exit=%d took=%s\n",
							ev.Timestamp.Format(time.RFC3339), ev.RequestID, ev.Event, ev.Status, ev.Kind, ev.ExitCode, ev.Duration)
						return nil
					})
					if errors.Is(ctx.Err(), context.DeadlineExceeded) {
						return nil
					}
					return err
				},
			},
			{
				Name:  "metrics",
				Usage: "get host resource usage and invocation counters",
				Flags: []cli.Flag{addressFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					client, conn, err := controller.Dial(cmd.String("address"))
					if err != nil {
						return err
					}
					defer conn.Close()

					ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
					defer cancel()

					m, err := client.Metrics(ctx)
					if err != nil {
						return err
					}
					godump.Dump(m)
					return nil
				},
			},
			{
				Name:  "wait",
				Usage: "wait until the relay server reports healthy",
				Flags: []cli.Flag{
					addressFlag,
					&cli.IntFlag{
						Name:  "attempts",
						Value: 30,
					},
					&cli.DurationFlag{
						Name:  "backoff",
						Value: time.Second,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					client, conn, err := controller.Dial(cmd.String("address"))
					if err != nil {
						return err
					}
					defer conn.Close()

					_, err = utils.CallWithRetry(ctx, func() (bool, error) {
						checkCtx, cancel := context.WithTimeout(ctx, cmd.Duration("backoff"))
						defer cancel()
						ok, err := client.Healthy(checkCtx)
						if err == nil && !ok {
							err = errors.New("relay server is not serving")
						}
						return ok, err
					}, int(cmd.Int("attempts")), cmd.Duration("backoff"))
					if err != nil {
						return err
					}
					fmt.Println("serving")
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func readDocuments(cmd *cli.Command) (event, invCtx json.RawMessage, err error) {
	event = json.RawMessage(cmd.String("event"))
	if !json.Valid(event) {
		return nil, nil, cli.Exit("--event is not valid JSON", 2)
	}
	if raw := cmd.String("context"); raw != "" {
		invCtx = json.RawMessage(raw)
		if !json.Valid(invCtx) {
			return nil, nil, cli.Exit("--context is not valid JSON", 2)
		}
	}
	return event, invCtx, nil
}

// printResult writes a success payload to stdout. Failures go to stderr and
// turn into exit code 1.
func printResult(rec *invocation.Recorder, kind string, quiet bool) error {
	payload, err := rec.Err()
	if err != nil {
		var failure *invocation.FailureError
		if errors.As(err, &failure) {
			if !quiet {
				fmt.Fprintf(os.Stderr, "%s: %s\n", kind, failure.Payload)
			}
			return cli.Exit("", 1)
		}
		return err
	}
	if !quiet {
		fmt.Print(payload)
	}
	return nil
}
