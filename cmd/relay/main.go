package main

import (
	"flag"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/3s-rg-codes/lambda-relay/pkg/lambdahandler"
	"github.com/3s-rg-codes/lambda-relay/pkg/relay"
	"github.com/3s-rg-codes/lambda-relay/pkg/utils"
)

type RelayConfig struct {
	Relay relay.Config
	Log   utils.LogConfig
}

func parseArgs() (rc RelayConfig) {
	flag.StringVar(&(rc.Relay.Executable), "executable", utils.EnvOrDefault("RELAY_EXECUTABLE", relay.DefaultExecutable), "Child executable, relative to the working directory. (Env: RELAY_EXECUTABLE)")
	flag.StringVar(&(rc.Relay.WorkDir), "workdir", utils.EnvOrDefault("RELAY_WORKDIR", os.Getenv("LAMBDA_TASK_ROOT")), "Working directory of the child. (Env: RELAY_WORKDIR)")
	flag.DurationVar(&(rc.Relay.Timeout), "timeout", utils.DurationEnv("RELAY_TIMEOUT", 0), "Per invocation timeout on top of the Lambda deadline, 0 for none. (Env: RELAY_TIMEOUT)")
	flag.Int64Var(&(rc.Relay.MaxOutputBytes), "max-output", utils.Int64Env("RELAY_MAX_OUTPUT_BYTES", relay.DefaultMaxOutputBytes), "Maximum child stdout in bytes, negative for unbounded. (Env: RELAY_MAX_OUTPUT_BYTES)")
	flag.StringVar(&(rc.Log.Level), "log-level", utils.EnvOrDefault("LOG_LEVEL", "info"), "Log level (debug, info, warn, error) (Env: LOG_LEVEL)")
	flag.StringVar(&(rc.Log.Format), "log-format", utils.EnvOrDefault("LOG_FORMAT", "text"), "Log format (text, json, dev) (Env: LOG_FORMAT)")
	flag.StringVar(&(rc.Log.FilePath), "log-file", os.Getenv("LOG_FILE"), "Log file path (defaults to stdout) (Env: LOG_FILE)")

	flag.Parse()
	return
}

func main() {
	rc := parseArgs()
	logger := utils.SetupLogger(rc.Log)

	r := relay.New(rc.Relay, logger)
	cfg := r.Config()
	logger.Info("Starting relay",
		"executable", cfg.Executable,
		"workdir", cfg.WorkDir,
		"timeout", cfg.Timeout,
		"max_output_bytes", cfg.MaxOutputBytes)

	lambda.Start(lambdahandler.New(r, logger).Handle)
}
