package main

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/oi-archive/usaco-crawler/config"
	"github.com/oi-archive/usaco-crawler/logger"
	"github.com/oi-archive/usaco-crawler/rpc"
)

const rootLong = `Crawl USACO problems and keep the problem indexes up to date.

Exit status:
  0  files were added or changed
  1  the run failed
  2  the run succeeded but there was nothing to do, and nothing was written

Note the order: wrappers that expect 0 for "no new data" and 1 for "problems added" read
these statuses backwards and must check for status 2 instead.`

// newRootCommand builds the command tree. Flags are bound to v, so they override the
// config file and the environment.
func newRootCommand(v *viper.Viper) *cobra.Command {
	var (
		cfgFile string
		debugOn bool
		a       *app
	)
	root := &cobra.Command{
		Use:           "usaco-crawler",
		Short:         "Crawl USACO problems and keep the problem indexes up to date",
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			if debugOn {
				cfg.Log.Level = "debug"
			}
			a, err = newApp(cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				_ = a.log.Sync()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	pf.BoolVar(&debugOn, "debug", false, "enable debug logging")
	pf.Bool("commit", false, "commit written files to the git repository")
	pf.Bool("remote", false, "submit files to the archive server instead of writing them")

	crawl := &cobra.Command{
		Use:   "crawl",
		Short: "Probe for new problems and add them to the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpdate(cmd.Context(), "crawl", a.plugin.Crawl)
		},
	}
	addCrawlFlags(crawl)

	merge := &cobra.Command{
		Use:   "merge",
		Short: "Add dataset problems missing from the derived indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpdate(cmd.Context(), "merge", a.plugin.Merge)
		},
	}
	addMergeFlags(merge)

	update := &cobra.Command{
		Use:   "update",
		Short: "Crawl, then merge, in one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpdate(cmd.Context(), "update", a.plugin.Update)
		},
	}
	addCrawlFlags(update)
	addMergeFlags(update)

	daemon := &cobra.Command{
		Use:   "daemon",
		Short: "Update now and then on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.daemon(cmd.Context(), a.cfg.Daemon.Schedule)
		},
	}
	daemon.Flags().String("schedule", "", "cron schedule (default @midnight)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the archive server that receives crawler updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveArchive(cmd.Context(), a)
		},
	}
	serve.Flags().String("addr", "", "listen address")
	serve.Flags().String("root", "", "directory files are written below")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			ver := "(devel)"
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
				ver = info.Main.Version
			}
			fmt.Fprintf(cmd.OutOrStdout(), "usaco-crawler version %s\n", ver)
		},
	}

	root.AddCommand(crawl, merge, update, daemon, serve, version)
	return root
}

func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-gap", 0, "stop after this many ids without a new problem")
	cmd.Flags().Int("transport-retries", 0, "retries of a failed fetch that do not count as a miss")
}

func addMergeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("minimum-year", 0, "skip problems of contests before this year")
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"commit":            "git.enabled",
	"remote":            "rpc.remote",
	"max-gap":           "crawler.max_gap",
	"transport-retries": "crawler.transport_retries",
	"minimum-year":      "merge.minimum_year",
	"schedule":          "daemon.schedule",
	"addr":              "rpc.addr",
	"root":              "rpc.root",
}

// bindFlags binds the flags of the command being run. Several commands share a key, so
// binding happens per run rather than when the tree is built.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func serveArchive(ctx context.Context, a *app) error {
	lis, err := net.Listen("tcp", a.cfg.RPC.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.RPC.Addr, err)
	}
	s := grpc.NewServer()
	rpc.RegisterAPIServer(s, a.archive)
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	a.log.Info("Archive server listening", logger.String("addr", lis.Addr().String()), logger.String("root", a.cfg.RPC.Root))
	return s.Serve(lis)
}
