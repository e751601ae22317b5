// Command queuectl inspects and manages the on-disk notification queue.
//
// It opens the queue directory directly, so it can be used while the
// application is stopped or from a cron job next to a running instance.
//
// Usage:
//
//	queuectl [-dir <path>] status
//	queuectl [-dir <path>] dead
//	queuectl [-dir <path>] requeue <job-id>
//	queuectl [-dir <path>] clear [-force]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/Niklasbrock/leoshare-notify/pkg/config"
	"github.com/Niklasbrock/leoshare-notify/pkg/logger"
	"github.com/Niklasbrock/leoshare-notify/pkg/queue"
)

const exitUsage = 2

func usage() {
	fmt.Fprintln(os.Stderr, "usage: queuectl [-dir <path>] status|dead|requeue <job-id>|clear [-force]")
	flag.PrintDefaults()
}

func main() {
	var dir string
	flag.StringVar(&dir, "dir", "", "Queue directory (defaults to QUEUE_DIR)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(exitUsage)
	}

	if err := run(dir, args); err != nil {
		fmt.Fprintln(os.Stderr, "queuectl:", err)
		os.Exit(1)
	}
}

func run(dir string, args []string) error {
	if dir == "" {
		var cfg queue.Config
		if err := config.Load(&cfg); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dir = cfg.Dir
	}

	log := logger.New(
		logger.WithTextFormatter(),
		logger.WithLevel(slog.LevelWarn),
		logger.WithOutput(os.Stderr),
	)

	store, err := queue.OpenFileStore(dir, queue.WithFileStoreLogger(log))
	if err != nil {
		return fmt.Errorf("open queue at %s: %w", dir, err)
	}
	defer store.Close()

	ctx := context.Background()

	switch args[0] {
	case "status":
		return printStatus(ctx, store)
	case "dead":
		return printDead(ctx, store)
	case "requeue":
		if len(args) < 2 {
			return fmt.Errorf("requeue: missing job id")
		}
		return requeue(ctx, store, args[1])
	case "clear":
		force := false
		fs := flag.NewFlagSet("clear", flag.ContinueOnError)
		fs.BoolVar(&force, "force", false, "Actually drop waiting jobs")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return clear(ctx, store, force)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printStatus(ctx context.Context, store *queue.FileStore) error {
	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "queue length\t%d\n", stats.QueueLength)
	fmt.Fprintf(w, "  pending\t%d\n", stats.Pending)
	fmt.Fprintf(w, "  in flight\t%d\n", stats.InFlight)
	fmt.Fprintf(w, "  retrying\t%d\n", stats.Retrying)
	fmt.Fprintf(w, "dead letters\t%d\n", stats.Dead)
	return w.Flush()
}

func printDead(ctx context.Context, store *queue.FileStore) error {
	letters, err := store.DeadJobs(ctx)
	if err != nil {
		return fmt.Errorf("read dead letters: %w", err)
	}
	if len(letters) == 0 {
		fmt.Println("no dead letters")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tRECIPIENT\tATTEMPTS\tLAST ATTEMPT\tLAST ERROR")
	for _, job := range letters {
		lastAttempt := "-"
		if job.LastAttemptAt != nil {
			lastAttempt = job.LastAttemptAt.UTC().Format(time.RFC3339)
		}
		lastError := "-"
		if job.LastError != nil {
			lastError = *job.LastError
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			job.ID, job.Kind, job.Recipient, job.Attempts, lastAttempt, lastError)
	}
	return w.Flush()
}

func requeue(ctx context.Context, store *queue.FileStore, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("parse job id %q: %w", rawID, err)
	}

	job, err := store.RequeueDead(ctx, id)
	if err != nil {
		return fmt.Errorf("requeue %s: %w", id, err)
	}

	fmt.Printf("requeued %s (%s -> %s)\n", job.ID, job.Kind, job.Recipient)
	return nil
}

func clear(ctx context.Context, store *queue.FileStore, force bool) error {
	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}
	if !force {
		return fmt.Errorf("refusing to drop %d waiting jobs without -force", stats.QueueLength)
	}

	dropped, err := store.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	fmt.Printf("dropped %d jobs\n", dropped)
	return nil
}
