package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/starhost/starhost/pkg/arbiter"
	"github.com/starhost/starhost/pkg/clock"
	"github.com/starhost/starhost/pkg/collab"
	"github.com/starhost/starhost/pkg/config"
	"github.com/starhost/starhost/pkg/cron"
	"github.com/starhost/starhost/pkg/files"
	"github.com/starhost/starhost/pkg/game"
	"github.com/starhost/starhost/pkg/log"
	"github.com/starhost/starhost/pkg/metrics"
	"github.com/starhost/starhost/pkg/player"
	"github.com/starhost/starhost/pkg/runner"
	"github.com/starhost/starhost/pkg/schedule"
	"github.com/starhost/starhost/pkg/server"
	"github.com/starhost/starhost/pkg/store"
	"github.com/starhost/starhost/pkg/tools"
	"github.com/starhost/starhost/pkg/turn"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	noCron     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "starhost",
	Short: "Starhost - game hosting daemon",
	Long: `Starhost manages the lifecycle of hosted play-by-email strategy
games: players register and submit turn files, the service runs the game
engine on a per-game schedule and publishes the results.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Starhost version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	serveCmd.Flags().BoolVar(&noCron, "nocron", false, "disable the scheduler, keep the command server")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hosting service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	metrics.Register()

	for _, dir := range []string{cfg.Host.WorkDir, cfg.Store.Path, cfg.Files.HostRoot, cfg.Files.UserRoot} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	st, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	hostFiles := files.NewOS(cfg.Files.HostRoot)
	userFiles := files.NewOS(cfg.Files.UserRoot)
	run := runner.New([]string{"BINDIR=" + cfg.BinDir})
	arb := arbiter.New()
	clk := clock.NewSystemClock(cfg.Host.TimeScale)

	mail := collab.LogMail{}
	forum := collab.LogForum{}
	router := collab.LogRouter{}

	reg := tools.New(st, hostFiles)
	games := game.New(st, hostFiles, reg, run, arb, clk, mail, forum, router,
		game.Options{
			WorkDir:         cfg.Files.HostRoot,
			KickAfterMissed: cfg.Host.KickAfterMissed,
			Backups:         cfg.Host.Backups,
		})
	players := player.New(st, games, userFiles, mail)
	turns := turn.New(st, games, hostFiles, run, arb, turn.Options{
		WorkDir:                cfg.Files.HostRoot,
		BinDir:                 cfg.BinDir,
		UsersSeeTemporaryTurns: cfg.Host.UsersSeeTemporaryTurns,
	})

	var sched *cron.Scheduler
	var notifier schedule.Notifier
	if !noCron {
		sched = cron.New(games, games, arb, clk)
		notifier = sched
		games.SetNotifier(sched)
		players.SetNotifier(sched)
		turns.SetNotifier(sched)
	}
	scheds := schedule.NewOps(st, arb, clock.NewTimeRandom(), notifier)

	dispatcher := server.NewDispatcher(server.Services{
		Store:     st,
		Games:     games,
		Players:   players,
		Turns:     turns,
		Schedules: scheds,
		Tools:     reg,
		Cron:      sched,
		HostFiles: hostFiles,
		UserFiles: userFiles,
		Mail:      mail,
		Forum:     forum,
		Router:    router,
		Clock:     clk,
	})
	srv := server.NewServer(dispatcher)

	if sched != nil {
		if err := sched.Start(); err != nil {
			return err
		}
		if cfg.Host.InitialSuspend > 0 {
			sched.Suspend(clk.Now() + cfg.Host.InitialSuspend)
		}
		defer sched.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Host.Addr())
	}()

	mainLog := log.WithComponent("main")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		mainLog.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	srv.Stop()
	return nil
}
