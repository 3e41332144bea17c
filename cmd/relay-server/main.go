package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/3s-rg-codes/lambda-relay/pkg/controller"
	"github.com/3s-rg-codes/lambda-relay/pkg/relay"
	"github.com/3s-rg-codes/lambda-relay/pkg/stats"
	"github.com/3s-rg-codes/lambda-relay/pkg/utils"
)

type ServerConfig struct {
	General struct {
		Address         string        `env:"RELAY_ADDRESS"`
		ListenerTimeout time.Duration `env:"RELAY_LISTENER_TIMEOUT"`
		UpdateBuffer    int           `env:"RELAY_UPDATE_BUFFER"`
	}
	Relay relay.Config
	// ChildEnv is added to Relay.Env. RELAY_ENV holds a comma separated list.
	ChildEnv utils.StringList `env:"RELAY_ENV"`
	Log      utils.LogConfig
}

func parseArgs() (sc ServerConfig) {
	flag.StringVar(&(sc.General.Address), "address", utils.EnvOrDefault("RELAY_ADDRESS", "0.0.0.0:50060"), "Relay server listen address. (Env: RELAY_ADDRESS)")
	flag.DurationVar(&(sc.General.ListenerTimeout), "listener-timeout", utils.DurationEnv("RELAY_LISTENER_TIMEOUT", 20*time.Second), "Time before a disconnected status listener is removed. (Env: RELAY_LISTENER_TIMEOUT)")
	flag.IntVar(&(sc.General.UpdateBuffer), "update-buffer", utils.IntEnv("RELAY_UPDATE_BUFFER", 10000), "Size of the status update buffer. (Env: RELAY_UPDATE_BUFFER)")
	flag.StringVar(&(sc.Relay.Executable), "executable", utils.EnvOrDefault("RELAY_EXECUTABLE", relay.DefaultExecutable), "Child executable, relative to -workdir. (Env: RELAY_EXECUTABLE)")
	flag.StringVar(&(sc.Relay.WorkDir), "workdir", os.Getenv("RELAY_WORKDIR"), "Working directory of the child. (Env: RELAY_WORKDIR)")
	flag.DurationVar(&(sc.Relay.Timeout), "timeout", utils.DurationEnv("RELAY_TIMEOUT", 30*time.Second), "Per invocation timeout, 0 for none. (Env: RELAY_TIMEOUT)")
	flag.Int64Var(&(sc.Relay.MaxOutputBytes), "max-output", utils.Int64Env("RELAY_MAX_OUTPUT_BYTES", relay.DefaultMaxOutputBytes), "Maximum child stdout in bytes, negative for unbounded. (Env: RELAY_MAX_OUTPUT_BYTES)")
	flag.StringVar(&(sc.Log.Level), "log-level", utils.EnvOrDefault("LOG_LEVEL", "info"), "Log level (debug, info, warn, error) (Env: LOG_LEVEL)")
	flag.StringVar(&(sc.Log.Format), "log-format", utils.EnvOrDefault("LOG_FORMAT", "text"), "Log format (text, json, dev) (Env: LOG_FORMAT)")
	flag.StringVar(&(sc.Log.FilePath), "log-file", os.Getenv("LOG_FILE"), "Log file path (defaults to stdout) (Env: LOG_FILE)")

	sc.ChildEnv = utils.ListEnv("RELAY_ENV")
	flag.Var(&sc.ChildEnv, "env", "KEY=VALUE added to the child environment, repeat for multiple. (Env: RELAY_ENV, comma separated)")

	flag.Parse()
	return
}

func main() {
	sc := parseArgs()
	logger := utils.SetupLogger(sc.Log)

	sc.Relay.Env = sc.ChildEnv
	r := relay.New(sc.Relay, logger)

	logger.Info("starting relay server",
		"address", sc.General.Address,
		"executable", sc.Relay.Executable,
		"workdir", sc.Relay.WorkDir,
		"timeout", sc.Relay.Timeout.String(),
		"child_env", sc.ChildEnv.String(),
	)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statsManager := stats.NewStatsManager(logger, sc.General.ListenerTimeout, sc.General.UpdateBuffer)
	c := controller.NewController(r, statsManager, logger, sc.General.Address, filepath.Base(sc.Relay.Executable))

	if err := c.StartServer(sigCtx); err != nil {
		logger.Error("relay server stopped", "error", err)
		os.Exit(1)
	}
}
