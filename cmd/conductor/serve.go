package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/bowerhall/conductor/internal/bot"
	"github.com/bowerhall/conductor/internal/config"
	"github.com/bowerhall/conductor/internal/httpapi"
	"github.com/bowerhall/conductor/internal/logger"
	"github.com/bowerhall/conductor/internal/mcpserver"
)

func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	withHTTP := fs.Bool("http", false, "serve the HTTP API")
	withMCP := fs.Bool("mcp", false, "serve MCP over stdio")
	withBots := fs.Bool("bots", false, "run the configured chat bots")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	logger.SetDebug(*verbose)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	// no flags: HTTP plus whatever bots have tokens
	if !*withHTTP && !*withMCP && !*withBots {
		*withHTTP = true
		*withBots = cfg.Bots.Telegram.Enabled || cfg.Bots.Discord.Enabled
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := mustBuild(ctx, cfg)
	defer a.Close()

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	g, ctx := errgroup.WithContext(ctx)

	if *withHTTP {
		srv := httpapi.New(cfg.Server.HTTPAddr, a.orch, httpapi.Options{
			APIKey:    cfg.Server.APIKey,
			DBPath:    a.dbPath,
			Scheduler: a.scheduler,
		})
		g.Go(func() error { return srv.Start(ctx) })
	}

	if *withBots {
		bots, err := bot.Enabled(cfg.Bots, a.orch)
		if err != nil {
			logger.Fatal("failed to create bots", "error", err)
		}
		if len(bots) == 0 {
			logger.Fatal("no bot providers enabled, set TELEGRAM_TOKEN or DISCORD_TOKEN")
		}
		a.routeAlerts(bots)
		g.Go(func() error { return bot.RunAll(ctx, bots) })
	}

	if *withMCP {
		// stdout belongs to the protocol
		srv := mcpserver.New(a.orch, version)
		g.Go(func() error {
			err := srv.ServeStdio()
			stop()
			return err
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("server stopped", "error", err)
	}
	logger.Info("shutdown complete")
}

// routeAlerts sends operator alerts to the first bot with an owner chat.
func (a *app) routeAlerts(bots []bot.Bot) {
	owners := map[string]string{
		"telegram": a.cfg.Bots.Telegram.Owner,
		"discord":  a.cfg.Bots.Discord.Owner,
	}
	for _, b := range bots {
		if owner := owners[b.Platform()]; owner != "" {
			a.alerter.SetNotify(bot.Notifier(b, owner))
			logger.Info("alerts routed to chat", "platform", b.Platform())
			return
		}
	}
}
