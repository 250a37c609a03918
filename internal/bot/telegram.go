package bot

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bowerhall/conductor/internal/logger"
)

const telegramMessageLimit = 4096

type telegram struct {
	api   *tgbotapi.BotAPI
	owner int64
	d     *dispatcher
}

func newTelegram(token, owner string, proc Processor) (Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	t := &telegram{api: api, d: newDispatcher("telegram", proc)}
	if owner != "" {
		if t.owner, err = strconv.ParseInt(owner, 10, 64); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *telegram) Platform() string { return "telegram" }

func (t *telegram) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			if t.owner != 0 && update.Message.Chat.ID != t.owner {
				logger.Warn("ignoring message from unknown chat", "chat", update.Message.Chat.ID)
				continue
			}

			go t.handleMessage(ctx, update.Message)
		}
	}
}

func (t *telegram) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	typing := tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)
	if _, err := t.api.Request(typing); err != nil {
		logger.Debug("typing indicator failed", "error", err)
	}

	reply := t.d.handle(ctx, chatID, msg.Text)
	if reply == "" {
		return
	}

	for i, part := range chunk(reply, telegramMessageLimit) {
		out := tgbotapi.NewMessage(msg.Chat.ID, part)
		if i == 0 {
			out.ReplyToMessageID = msg.MessageID
		}
		if _, err := t.api.Send(out); err != nil {
			logger.Error("send failed", "error", err)
			return
		}
	}
	logger.Info("reply sent", "platform", "telegram", "chars", len(reply))
}

func (t *telegram) Send(chatID, message string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return err
	}

	for _, part := range chunk(message, telegramMessageLimit) {
		if _, err := t.api.Send(tgbotapi.NewMessage(id, part)); err != nil {
			logger.Error("proactive send failed", "error", err, "chatID", chatID)
			return err
		}
	}
	return nil
}
