package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/castmarket/castmarket/internal/server"
	"github.com/castmarket/castmarket/internal/server/handler"
	"github.com/castmarket/castmarket/internal/server/ws"
	"github.com/castmarket/castmarket/internal/service"
)

// lockConfig builds the per-question lock parameters from configuration.
func (a *App) lockConfig() service.LockConfig {
	lc := service.DefaultLockConfig
	if a.cfg.Market.LockTTL.Duration > 0 {
		lc.TTL = a.cfg.Market.LockTTL.Duration
	}
	if a.cfg.Market.LockRetries > 0 {
		lc.Retries = a.cfg.Market.LockRetries
	}
	if a.cfg.Market.LockRetryDelay.Duration > 0 {
		lc.RetryDelay = a.cfg.Market.LockRetryDelay.Duration
	}
	return lc
}

func (a *App) expirePolicy() service.ExpirePolicy {
	p := service.ExpirePolicy(strings.ToLower(a.cfg.Market.ExpirePolicy))
	if !p.Valid() {
		return service.ExpirePolicyFreeze
	}
	return p
}

// ServeMode runs the HTTP API, the WebSocket hub, and the background
// expiration sweeper until the context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	lockCfg := a.lockConfig()
	marketSvc := service.NewMarketService(deps.TxRunner, deps.SignalBus, a.logger)
	votingSvc := service.NewVotingService(deps.TxRunner, deps.LockManager, deps.SignalBus, lockCfg, a.logger)
	resolutionSvc := service.NewResolutionService(deps.TxRunner, deps.LockManager, deps.SignalBus, deps.Notifier, lockCfg, a.logger)
	sweeper := service.NewSweeper(deps.TxRunner, deps.SignalBus, deps.Notifier, a.expirePolicy(), a.logger)

	g.Go(func() error {
		return sweeper.RunEvery(ctx, a.cfg.Market.SweepInterval.Duration)
	})

	// With the HTTP surface disabled only the background sweeper runs;
	// the websocket hub is reachable solely through the server.
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled, running sweeper only")
		return g.Wait()
	}

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": deps.Postgres,
			"redis":    deps.Redis,
		}, a.logger),
		Questions:  handler.NewQuestionHandler(marketSvc, a.logger),
		Votes:      handler.NewVoteHandler(votingSvc, a.logger),
		Resolution: handler.NewResolutionHandler(resolutionSvc, a.logger),
		Sweep:      handler.NewSweepHandler(sweeper, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// SweepMode performs a single expiration sweep and exits, for cron-style
// scheduling. The serve mode already runs the periodic sweeper.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sweep mode")

	sweeper := service.NewSweeper(deps.TxRunner, deps.SignalBus, deps.Notifier, a.expirePolicy(), a.logger)

	expired, err := sweeper.SweepExpired(ctx)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "sweep complete",
		slog.Int("expired", len(expired)),
	)
	return nil
}

// ArchiveMode snapshots old vote records and terminal questions to object
// storage, then exits. The cutoff is now minus the retention window.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	before := time.Now().UTC().AddDate(0, 0, -a.cfg.Market.ArchiveRetentionDays)

	votes, err := deps.Archiver.ArchiveVotes(ctx, before)
	if err != nil {
		return err
	}
	questions, err := deps.Archiver.ArchiveTerminalQuestions(ctx, before)
	if err != nil {
		return err
	}

	// Read back the snapshot inventory so a failed upload surfaces here
	// rather than on the next restore attempt.
	snapshots, err := deps.BlobReader.List(ctx, "archive/")
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "archive complete",
		slog.String("before", before.Format(time.RFC3339)),
		slog.Int64("votes", votes),
		slog.Int64("questions", questions),
		slog.Int("snapshots", len(snapshots)),
	)
	return nil
}
