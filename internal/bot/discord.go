package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/bowerhall/conductor/internal/logger"
)

const discordMessageLimit = 2000

type discord struct {
	session *discordgo.Session
	owner   string
	d       *dispatcher
	ctx     context.Context
}

func newDiscord(token, owner string, proc Processor) (Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	d := &discord{
		session: session,
		owner:   owner,
		d:       newDispatcher("discord", proc),
		ctx:     context.Background(),
	}
	session.AddHandler(d.handleMessage)

	return d, nil
}

func (d *discord) Platform() string { return "discord" }

func (d *discord) Start(ctx context.Context) error {
	d.ctx = ctx

	if err := d.session.Open(); err != nil {
		return err
	}

	<-ctx.Done()
	return d.session.Close()
}

func (d *discord) Send(channelID, message string) error {
	for _, part := range chunk(message, discordMessageLimit) {
		if _, err := d.session.ChannelMessageSend(channelID, part); err != nil {
			logger.Error("discord send failed", "error", err, "channelID", channelID)
			return err
		}
	}
	return nil
}

func (d *discord) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	if d.owner != "" && m.ChannelID != d.owner {
		return
	}

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		logger.Debug("typing indicator failed", "error", err)
	}

	reply := d.d.handle(d.ctx, m.ChannelID, m.Content)
	if reply == "" {
		return
	}

	parts := chunk(reply, discordMessageLimit)
	if _, err := s.ChannelMessageSendReply(m.ChannelID, parts[0], m.Reference()); err != nil {
		logger.Error("discord reply failed", "error", err)
		return
	}
	for _, part := range parts[1:] {
		if _, err := s.ChannelMessageSend(m.ChannelID, part); err != nil {
			logger.Error("discord send failed", "error", err)
			return
		}
	}
	logger.Info("reply sent", "platform", "discord", "chars", len(reply))
}
