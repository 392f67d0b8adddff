package run

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-lynx/vectorium"
	"github.com/go-lynx/vectorium/admin"
	"github.com/go-lynx/vectorium/cmd/vectorium/internal/banner"
	"github.com/go-lynx/vectorium/cmd/vectorium/internal/base"
	"github.com/go-lynx/vectorium/log"
)

var (
	builtin   bool
	adminAddr string
	load      []string
	duration  time.Duration
)

// CmdRun runs the engine until interrupted.
var CmdRun = &cobra.Command{
	Use:   "run",
	Short: "Run the plugin host",
	Long: `Run loads the configuration, initialises the engine, loads the enabled
plugins and ticks them at the configured rate until interrupted.`,
	Example: `  # Run with the compiled-in sample plugins and the admin API
  vectorium run --builtin --load NumberGenerator --load NumberLogger --admin :8088`,
	RunE: runE,
}

func init() {
	CmdRun.Flags().BoolVar(&builtin, "builtin", false, "serve the sample plugins from memory instead of the plugin directory")
	CmdRun.Flags().StringVar(&adminAddr, "admin", "", "admin HTTP listen address (overrides admin.addr)")
	CmdRun.Flags().StringSliceVar(&load, "load", nil, "additional plugins to load after startup")
	CmdRun.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
}

func runE(cmd *cobra.Command, _ []string) (err error) {
	cfg, path, err := base.LoadConfig()
	if err != nil {
		return err
	}
	closeLog, err := base.InitLogging(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	if !cfg.CloseBanner {
		if err := banner.Print(os.Stdout, filepath.Dir(path), base.Release); err != nil {
			log.Warnf("%v", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	shutdownTracing, err := base.SetupTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}

	e := base.NewEngine(cfg, path, builtin)
	defer func() {
		var result *multierror.Error
		if err != nil {
			result = multierror.Append(result, err)
		}
		if serr := e.Shutdown(); serr != nil {
			result = multierror.Append(result, serr)
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if terr := shutdownTracing(flushCtx); terr != nil {
			result = multierror.Append(result, terr)
		}
		err = result.ErrorOrNil()
	}()

	if err := e.Init(ctx); err != nil {
		return err
	}
	base.LoadNamed(e.Manager(), load)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return Loop(gctx, e, cfg.TickInterval()) })

	addr := adminAddr
	if addr == "" {
		addr = cfg.Admin.Addr
	}
	if addr != "" {
		srv := admin.NewServer(e.Manager(), admin.Address(addr), admin.JWTSecret(cfg.Admin.JWTSecret))
		g.Go(func() error { return srv.Start(gctx) })
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(stopCtx)
		})
		log.Infof("admin API listening on %s", addr)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Infof("stopping after %d frames", e.Frame())
	return nil
}

// Loop ticks e every interval until ctx is done.
func Loop(ctx context.Context, e *vectorium.Engine, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			e.Tick()
		}
	}
}
