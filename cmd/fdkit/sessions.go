package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pipewright/fdkit/internal/storage/archive"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect archived capture sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one archived session, captured output included",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openArchive() (*archive.Archiver, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Archive.Enabled {
		return nil, errors.New("archive is not enabled in the configuration")
	}
	return newArchiver(cfg)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	a, err := openArchive()
	if err != nil {
		return err
	}

	ctx := context.Background()
	ids, err := a.ListIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("no archived sessions")
		return nil
	}

	for _, id := range ids {
		rec, err := a.Get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %-8s  exit %-3d  %s  %s  %v\n",
			rec.ID,
			statusSprint(rec.Status),
			rec.ExitCode,
			rec.StartedAt.Local().Format(time.DateTime),
			humanize.Bytes(uint64(rec.Size())),
			rec.Argv,
		)
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	a, err := openArchive()
	if err != nil {
		return err
	}

	rec, err := a.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("id:       %s\n", rec.ID)
	fmt.Printf("argv:     %v\n", rec.Argv)
	if rec.Dir != "" {
		fmt.Printf("dir:      %s\n", rec.Dir)
	}
	fmt.Printf("status:   %s\n", statusSprint(rec.Status))
	fmt.Printf("exit:     %d\n", rec.ExitCode)
	fmt.Printf("started:  %s\n", rec.StartedAt.Local().Format(time.DateTime))
	fmt.Printf("duration: %s\n", rec.Duration().Round(time.Millisecond))

	if len(rec.Stdout) > 0 {
		fmt.Printf("--- stdout (%s) ---\n", humanize.Bytes(uint64(len(rec.Stdout))))
		os.Stdout.Write(rec.Stdout)
	}
	if len(rec.Stderr) > 0 {
		fmt.Printf("--- stderr (%s) ---\n", humanize.Bytes(uint64(len(rec.Stderr))))
		os.Stdout.Write(rec.Stderr)
	}
	return nil
}
