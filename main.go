package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/oi-archive/usaco-crawler/config"
	"github.com/oi-archive/usaco-crawler/index"
	"github.com/oi-archive/usaco-crawler/logger"
	"github.com/oi-archive/usaco-crawler/plugin/public"
	"github.com/oi-archive/usaco-crawler/plugin/usaco"
	"github.com/oi-archive/usaco-crawler/report"
	"github.com/oi-archive/usaco-crawler/rpc"
)

// Exit statuses. exitNothingToDo lets calling tooling tell an idle run from one that
// changed files.
const (
	exitOK          = 0
	exitError       = 1
	exitNothingToDo = 2
)

var errNothingToDo = errors.New("nothing to do")

type updateFunc func(ctx context.Context) (public.FileList, *report.Report, error)

// app is the state shared by every command once configuration is loaded.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	plugin  *usaco.Plugin
	archive *archive

	// running serialises updates started by the scheduler.
	running sync.Mutex
}

func newApp(cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.Logger())
	if err != nil {
		return nil, err
	}
	fetcher := public.NewFetcher(
		cfg.Crawler.RequestTimeout,
		cfg.Crawler.RateInterval,
		cfg.Crawler.FetchAttempts,
		cfg.Crawler.UserAgent,
	)
	extractor := usaco.NewExtractor(fetcher, cfg.Crawler.ProbeURL, cfg.Crawler.ProblemURL)
	a := &app{
		cfg:     cfg,
		log:     log,
		plugin:  usaco.New(cfg.Plugin(), extractor, log),
		archive: &archive{root: cfg.RPC.Root, log: log.With(logger.String("component", "archive"))},
	}
	if cfg.Git.Enabled {
		g, err := openGit(cfg.Git.Repo, cfg.Git.AuthorName, cfg.Git.AuthorEmail)
		if err != nil {
			return nil, err
		}
		a.archive.git = g
	}
	return a, nil
}

// runUpdate runs op and persists what it returns. It returns errNothingToDo when op found
// nothing to change, in which case nothing is written.
func (a *app) runUpdate(ctx context.Context, name string, op updateFunc) error {
	a.log.Info("Updating", logger.String("operation", name), logger.String("plugin", a.plugin.Name()))
	fl, rep, err := op(ctx)
	if errors.Is(err, usaco.ErrNoNewData) || errors.Is(err, index.ErrNoChanges) {
		a.log.Info("Nothing to update", logger.String("operation", name))
		return errNothingToDo
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	message := fmt.Sprintf("Problemset %s updated: %d problems added\n\n%s", a.plugin.Name(), rep.Len(), rep)
	if err := a.publish(ctx, fl, message); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Print(rep)
	return nil
}

func (a *app) publish(ctx context.Context, fl public.FileList, message string) error {
	if !a.cfg.RPC.Remote {
		_, err := a.archive.store(fl, message)
		return err
	}
	conn, err := grpc.NewClient(a.cfg.RPC.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect to archive %s: %w", a.cfg.RPC.Addr, err)
	}
	defer conn.Close()
	r, err := rpc.NewAPIClient(conn).Update(ctx, &rpc.UpdateRequest{Id: usaco.PID, Message: message, File: fl})
	if err != nil {
		return fmt.Errorf("submit update: %w", err)
	}
	if !r.Ok {
		return errors.New("submit update failed")
	}
	a.log.Info("Update submitted", logger.String("addr", a.cfg.RPC.Addr), logger.String("commit", r.Commit))
	return nil
}

// daemon runs an update now and then on schedule until ctx ends.
func (a *app) daemon(ctx context.Context, schedule string) error {
	runUpdate := func() {
		if !a.running.TryLock() {
			a.log.Warn("Previous update still running, skipping")
			return
		}
		defer a.running.Unlock()
		err := a.runUpdate(ctx, "update", a.plugin.Update)
		if err != nil && !errors.Is(err, errNothingToDo) {
			a.log.Error("Update failed", logger.Error(err))
		}
	}
	runUpdate()
	c := cron.New()
	if err := c.AddFunc(schedule, runUpdate); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	c.Start()
	defer c.Stop()
	a.log.Info("Daemon started", logger.String("schedule", schedule))
	<-ctx.Done()
	a.log.Info("Daemon stopped")
	return nil
}

func main() {
	os.Exit(execute())
}

func execute() int {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand(viper.New()).ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errNothingToDo):
		return exitNothingToDo
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
}
