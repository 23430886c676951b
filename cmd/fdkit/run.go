package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pipewright/fdkit/internal/config"
	"github.com/pipewright/fdkit/internal/logger"
	"github.com/pipewright/fdkit/internal/metrics"
	"github.com/pipewright/fdkit/internal/runner"
	"github.com/pipewright/fdkit/internal/session"
	"github.com/pipewright/fdkit/internal/storage/archive"
	"github.com/pipewright/fdkit/internal/watchdog"
)

var (
	runTee bool
	runDir string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- command [args...]",
	Short: "Run a command with both output streams captured",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVarP(&runTee, "tee", "t", false, "forward captured output to the terminal as well")
	runCmd.Flags().StringVar(&runDir, "dir", "", "working directory for the command")
	rootCmd.AddCommand(runCmd)
}

// commandArgs returns the child argv. Everything after -- belongs to the
// child verbatim, flags included.
func commandArgs(args []string, atDash int) ([]string, error) {
	if atDash >= 0 {
		args = args[atDash:]
	}
	if len(args) == 0 {
		return nil, errors.New("no command given, expected: fdkit run -- command [args...]")
	}
	return args, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.Must(debug || cfg.Logging.Development)
	defer log.Sync()

	reg := metrics.NewRegistry()
	logger.RouteDescriptorDiagnostics(log, func(error) { reg.RecordCloseFailure() })

	argv, err := commandArgs(args, cmd.ArgsLenAtDash())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := session.NewStore(cfg.Sessions.Max, cfg.Sessions.TTL)

	if cfg.Server.Enabled {
		srv := metrics.NewServer(metrics.ServerConfig{
			Addr:        cfg.Server.Addr,
			MetricsPath: cfg.Server.MetricsPath,
		}, reg, store, log)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("observability server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Watchdog.Enabled {
		wd := watchdog.New(watchdog.Config{
			Interval:       cfg.Watchdog.Interval,
			MaxDescriptors: cfg.Watchdog.MaxDescriptors,
			RlimitFraction: cfg.Watchdog.RlimitFraction,
		}, log, reg)
		go wd.Run(ctx)
	}

	rec := store.Create(argv, runDir)

	result, err := runner.Run(ctx, runner.Spec{
		Argv:  argv,
		Dir:   runDir,
		Tee:   runTee || cfg.Capture.Tee,
		Stdin: os.Stdin,
	}, log)
	if err != nil {
		return err
	}

	store.Update(rec.ID, func(r *session.Record) {
		r.Status = result.Status
		r.ExitCode = result.ExitCode
		r.Stdout = result.Stdout
		r.Stderr = result.Stderr
		r.StartedAt = result.StartedAt
		r.FinishedAt = result.FinishedAt
	})
	reg.RecordSession(string(result.Status), len(result.Stdout), len(result.Stderr))

	if cfg.Archive.Enabled {
		final, _ := store.Get(rec.ID)
		if err := archiveRecord(ctx, cfg, final); err != nil {
			log.Error("archiving session failed", zap.Error(err))
		} else {
			log.Info("session archived", zap.String("id", final.ID))
		}
	}

	printSummary(rec.ID, result)

	if code := exitStatus(result); code != 0 {
		log.Sync()
		os.Exit(code)
	}
	return nil
}

// exitStatus maps a finished session onto the process exit code: the child's
// own code when it has one, otherwise nonzero for any run that did not
// complete cleanly (killed, or signal-terminated with no code to report).
func exitStatus(rec *session.Record) int {
	if rec.Status == session.StatusComplete {
		return 0
	}
	if rec.ExitCode > 0 {
		return rec.ExitCode
	}
	return 1
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newArchiver(cfg *config.Config) (*archive.Archiver, error) {
	var backend archive.Storage
	var err error
	switch cfg.Archive.Type {
	case "s3":
		backend, err = archive.NewS3(archive.S3Config{
			Bucket:    cfg.Archive.S3.Bucket,
			Endpoint:  cfg.Archive.S3.Endpoint,
			Region:    cfg.Archive.S3.Region,
			AccessKey: cfg.Archive.S3.AccessKey,
			SecretKey: cfg.Archive.S3.SecretKey,
			Prefix:    cfg.Archive.S3.Prefix,
		})
	default:
		backend, err = archive.NewLocalFS(cfg.Archive.Path)
	}
	if err != nil {
		return nil, err
	}
	return archive.NewArchiver(backend), nil
}

func archiveRecord(ctx context.Context, cfg *config.Config, rec *session.Record) error {
	a, err := newArchiver(cfg)
	if err != nil {
		return err
	}
	return a.Put(ctx, rec)
}

func statusSprint(status session.Status) string {
	switch status {
	case session.StatusComplete:
		return color.GreenString(string(status))
	case session.StatusKilled:
		return color.YellowString(string(status))
	default:
		return color.RedString(string(status))
	}
}

func printSummary(id string, rec *session.Record) {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}
	fmt.Fprintf(os.Stderr, "session %s: %s (exit %d) in %s, captured %s stdout / %s stderr\n",
		id,
		statusSprint(rec.Status),
		rec.ExitCode,
		rec.Duration().Round(time.Millisecond),
		humanize.Bytes(uint64(len(rec.Stdout))),
		humanize.Bytes(uint64(len(rec.Stderr))),
	)
}
