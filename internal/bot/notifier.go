package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"giveaway-bot/internal/announce"
	"giveaway-bot/internal/model"
)

// Messenger is the part of the Telegram API the notifier uses. *tele.Bot implements it.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	EditReplyMarkup(msg tele.Editable, markup *tele.ReplyMarkup) (*tele.Message, error)
}

// ChannelNotifier posts giveaway announcements to one channel.
type ChannelNotifier struct {
	api     Messenger
	channel *tele.Chat
}

// NewChannelNotifier creates a new ChannelNotifier.
func NewChannelNotifier(api Messenger, channel *tele.Chat) *ChannelNotifier {
	return &ChannelNotifier{api: api, channel: channel}
}

// AnnounceCreation posts the giveaway with its join button and returns the message id.
func (n *ChannelNotifier) AnnounceCreation(ctx context.Context, g *model.Giveaway) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	msg, err := n.api.Send(n.channel, announce.CreationText(g), &tele.SendOptions{
		ParseMode:   tele.ModeMarkdownV2,
		ReplyMarkup: announce.JoinKeyboard(g.ID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to post giveaway %d: %w", g.ID, err)
	}
	return strconv.Itoa(msg.ID), nil
}

// AnnounceResults posts the winners and removes the join button from the announcement.
func (n *ChannelNotifier) AnnounceResults(ctx context.Context, g *model.Giveaway, winners []model.Participant) error {
	return n.post(ctx, g, announce.ResultsText(g, winners))
}

// AnnounceNoParticipants posts that nobody joined and removes the join button.
func (n *ChannelNotifier) AnnounceNoParticipants(ctx context.Context, g *model.Giveaway) error {
	return n.post(ctx, g, announce.NoParticipantsText(g))
}

func (n *ChannelNotifier) post(ctx context.Context, g *model.Giveaway, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.api.Send(n.channel, text); err != nil {
		return fmt.Errorf("failed to post result of giveaway %d: %w", g.ID, err)
	}
	n.removeJoinButton(g)
	return nil
}

// removeJoinButton is best effort; the message may be gone or too old to edit.
func (n *ChannelNotifier) removeJoinButton(g *model.Giveaway) {
	if g.AnnouncementRef == "" {
		return
	}

	msg := tele.StoredMessage{MessageID: g.AnnouncementRef, ChatID: n.channel.ID}
	if _, err := n.api.EditReplyMarkup(msg, &tele.ReplyMarkup{}); err != nil {
		log.Debug().Err(err).Int64("giveaway_id", g.ID).Msg("Could not remove join button")
	}
}
