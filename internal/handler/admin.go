package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"giveaway-bot/internal/announce"
	"giveaway-bot/internal/model"
	"giveaway-bot/internal/service"
)

// Admin replies.
const (
	usagePickWinner    = "Usage: /pickwinner <giveaway id>\nExample: /pickwinner 3"
	replyNotFound      = "Giveaway not found"
	replyNoParticipant = "No participants yet."
	replySaveFailed    = "⚠️ Could not save the result, please try again"
	replyFailed        = "⚠️ Something went wrong, please try again"
)

// GiveawayAdmin is the part of the giveaway service used by admin commands.
type GiveawayAdmin interface {
	ForceFinalize(ctx context.Context, id int64) (*service.FinalizationResult, error)
	List() []*model.Giveaway
}

// AdminHandler handles admin-only commands. Authorization is done by the
// admin middleware before these handlers run.
type AdminHandler struct {
	giveaways GiveawayAdmin
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(giveaways GiveawayAdmin) *AdminHandler {
	return &AdminHandler{giveaways: giveaways}
}

// HandlePickWinner handles the /pickwinner command.
// Format: /pickwinner <giveaway id>
func (h *AdminHandler) HandlePickWinner(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return replyToAdmin(c, usagePickWinner)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return replyToAdmin(c, usagePickWinner)
	}

	result, err := h.giveaways.ForceFinalize(context.Background(), id)
	switch {
	case errors.Is(err, service.ErrGiveawayNotFound):
		return replyToAdmin(c, replyNotFound)
	case errors.Is(err, service.ErrNoParticipants):
		return replyToAdmin(c, replyNoParticipant)
	case err != nil:
		log.Error().Err(err).Int64("admin_id", sender.ID).Int64("giveaway_id", id).Msg("Admin finalization failed")
		return replyToAdmin(c, replySaveFailed)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("giveaway_id", id).
		Bool("already_finalized", result.AlreadyFinalized).
		Int("winners", len(result.Winners)).
		Str("operation", "pickwinner").
		Msg("Admin operation executed")

	if len(result.Winners) == 0 {
		return replyToAdmin(c, announce.NoParticipantsText(result.Giveaway))
	}
	return replyToAdmin(c, announce.AdminWinnersText(result.Giveaway, result.Winners))
}

// HandleList handles the /giveaways command.
func (h *AdminHandler) HandleList(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	return replyToAdmin(c, announce.ListText(h.giveaways.List()))
}

// replyToAdmin answers in the current chat when it is private, otherwise in the
// admin's private chat so giveaway state is not shown to group members.
func replyToAdmin(c tele.Context, text string) error {
	if chat := c.Chat(); chat == nil || chat.Type == tele.ChatPrivate {
		return c.Send(text)
	}
	if _, err := c.Bot().Send(c.Sender(), text); err != nil {
		log.Error().Err(err).Int64("admin_id", c.Sender().ID).Msg("Failed to message admin")
		return c.Send(replyFailed)
	}
	return nil
}
