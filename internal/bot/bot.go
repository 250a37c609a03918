package bot

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bowerhall/conductor/internal/config"
	"github.com/bowerhall/conductor/internal/logger"
)

// New builds one bot for the named platform.
func New(platform string, cfg config.BotInstance, proc Processor) (Bot, error) {
	switch platform {
	case "telegram":
		return newTelegram(cfg.Token, cfg.Owner, proc)
	case "discord":
		return newDiscord(cfg.Token, cfg.Owner, proc)
	default:
		return nil, errUnknownPlatform(platform)
	}
}

// Enabled builds every bot that has a token configured.
func Enabled(cfg config.MultiBot, proc Processor) ([]Bot, error) {
	var bots []Bot

	if cfg.Telegram.Enabled {
		b, err := New("telegram", cfg.Telegram, proc)
		if err != nil {
			return nil, err
		}
		bots = append(bots, b)
	}

	if cfg.Discord.Enabled {
		b, err := New("discord", cfg.Discord, proc)
		if err != nil {
			return nil, err
		}
		bots = append(bots, b)
	}

	return bots, nil
}

// RunAll starts every bot and returns when ctx ends or one of them fails.
func RunAll(ctx context.Context, bots []Bot) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, b := range bots {
		g.Go(func() error {
			logger.Info("bot starting", "platform", b.Platform())
			return b.Start(ctx)
		})
	}
	return g.Wait()
}
