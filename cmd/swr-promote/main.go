package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swr-promote/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	debug   = false
	quiet   = false

	logLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
)

func main() {
	logger, err := newConsoleLogger(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	reporter := cli.NewActionReporter()
	initCommands(cli.NewPromoteManager(cli.DefaultExecutor(), logger, reporter))

	err = rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		reporter.Fail(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "swr-promote",
	Short: "Promote container images into Huawei Cloud SWR",
	Long: `swr-promote makes sure an image tag exists in Huawei Cloud SWR:
- Skips the run when the destination tag already exists
- Creates a missing repository
- Logs in with a temporary secret, then pulls, tags and pushes the image
- Removes the docker credential file afterwards

Inputs come from flags, INPUT_<KEY>/SWR_<KEY> environment variables or a YAML
config file. Running without a subcommand is the same as "promote".`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		enabled := debugEnabled(debug, os.Getenv)
		// Set debug mode globally so logStructuredError can check it
		cli.SetDebugMode(enabled)
		cli.DefaultPrinter.Quiet = quiet
		if enabled {
			logLevel.SetLevel(zap.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Only print errors")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logs and structured error output (also RUNNER_DEBUG=1)")
}

// initCommands registers the subcommands and makes promote the root action.
func initCommands(mgr *cli.PromoteManager) {
	promoteCmd := mgr.NewPromoteCmd()
	rootCmd.Flags().AddFlagSet(promoteCmd.Flags())
	rootCmd.RunE = promoteCmd.RunE

	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(mgr.NewCheckCmd())
	rootCmd.AddCommand(mgr.NewLoginCmd())
	rootCmd.AddCommand(cli.NewErrorsCmd())
}

// debugEnabled reports whether --debug was given or the runner asked for
// debug logs.
func debugEnabled(flag bool, getenv func(string) string) bool {
	return flag || getenv("RUNNER_DEBUG") == "1"
}

// newConsoleLogger returns a human-friendly console logger with timestamps.
// The level starts at Error so structured error logs show in debug mode, and
// is raised to Debug once flags are parsed.
func newConsoleLogger(level zap.AtomicLevel) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = level
	cfg.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "",
		CallerKey:      "",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	return cfg.Build()
}
