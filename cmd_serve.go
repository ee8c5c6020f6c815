package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"shaderworkshop/broadcast"
	"shaderworkshop/config"
	"shaderworkshop/db"
	"shaderworkshop/frag"
	"shaderworkshop/fragcache"
	"shaderworkshop/platform/shutdown"
	"shaderworkshop/session"
	"shaderworkshop/watch"
	"shaderworkshop/web"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	flagAddr        string
	flagDB          string
	flagCacheSize   int
	flagIdleTimeout time.Duration
	flagVerbose     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [shader-dir]",
	Short: "Serve assembled shaders and live-reload connected previews",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (env SHADER_ADDR, default :8080)")
	serveCmd.Flags().StringVar(&flagDB, "db", "", "duckdb file for the assembly and session logs, 'off' to disable (env SHADER_DB)")
	serveCmd.Flags().IntVar(&flagCacheSize, "cache-size", 0, "assembled fragments kept in memory (env SHADER_CACHE_SIZE)")
	serveCmd.Flags().DurationVar(&flagIdleTimeout, "idle-timeout", 0, "close sessions without client activity for this long (env SHADER_IDLE_TIMEOUT)")
	serveCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "debug logging (env SHADER_VERBOSE)")
}

// applyFlags overrides environment settings with explicitly set flags.
func applyFlags(cmd *cobra.Command, args []string, cfg *config.Config) {
	if len(args) > 0 {
		cfg.ShaderDir = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = flagAddr
	}
	if flags.Changed("db") {
		cfg.DBPath = flagDB
		if flagDB == config.DBOff {
			cfg.DBPath = ""
		}
	}
	if flags.Changed("cache-size") && flagCacheSize > 0 {
		cfg.CacheSize = flagCacheSize
	}
	if flags.Changed("idle-timeout") && flagIdleTimeout > 0 {
		cfg.IdleTimeout = flagIdleTimeout
	}
	if flags.Changed("verbose") {
		cfg.Verbose = flagVerbose
	}
}

// reapInterval checks for idle sessions a few times per timeout.
func reapInterval(idle time.Duration) time.Duration {
	return max(idle/4, time.Second)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	applyFlags(cmd, args, cfg)
	if cfg.Verbose {
		logger.SetLogLevel(logger.StrLevelDebug)
	}

	dir, err := filepath.Abs(cfg.ShaderDir)
	if err != nil {
		return serr.Wrap(err, "failed to resolve shader directory", "dir", cfg.ShaderDir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return serr.F("shader directory not found: %s", dir)
	}
	fsys := os.DirFS(dir)

	watcher, err := watch.New(dir)
	if err != nil {
		return err
	}
	defer watcher.Close()

	var (
		store web.Store
		rec   session.Recorder
	)
	if cfg.DBPath != "" {
		database, err := db.GetDB(cfg.DBPath)
		if err != nil {
			logger.LogErr(err, "persistence disabled", "path", cfg.DBPath)
		} else {
			defer database.Close()
			store, rec = database, database
		}
	}

	cache, err := fragcache.New(fsys, frag.Options{Header: true, LineDirectives: true}, cfg.CacheSize)
	if err != nil {
		return err
	}

	bcast := broadcast.New(watcher.Events())
	registry := session.NewRegistry(fsys, bcast, rec)
	workshop := web.NewWorkshop(web.Deps{
		ShaderDir:   dir,
		FS:          fsys,
		Cache:       cache,
		Registry:    registry,
		Broadcaster: bcast,
		Store:       store,
	})

	s := rweb.NewServer(rweb.ServerOptions{
		Address: cfg.Addr,
		Verbose: cfg.Verbose,
	})
	s.Use(rweb.RequestInfo)
	web.SetupRoutes(s, workshop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	shutdown.RegisterHook("serve", func(time.Duration) error {
		cancel()
		return nil
	})
	shutdown.InitShutdownService(done)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return bcast.Run(gctx) })
	g.Go(func() error { return cache.Follow(gctx, bcast) })
	g.Go(func() error { return registry.Run(gctx, reapInterval(cfg.IdleTimeout), cfg.IdleTimeout) })
	g.Go(func() error {
		// rweb has no context-aware stop; the listener ends with the process
		errCh := make(chan error, 1)
		go func() { errCh <- s.Run() }()
		select {
		case <-gctx.Done():
			return nil
		case err := <-errCh:
			return serr.Wrap(err, "http server stopped", "addr", cfg.Addr)
		}
	})

	logger.Info("Shader workshop listening", "addr", cfg.Addr, "dir", dir, "persistence", store != nil)

	err = g.Wait()
	if shutdown.CheckShutdown() {
		<-done
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
