// Package handler provides Telegram bot command and callback handlers.
package handler

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"giveaway-bot/internal/announce"
	"giveaway-bot/internal/model"
	"giveaway-bot/internal/service"
)

// Joiner records a participant in a giveaway.
type Joiner interface {
	Join(ctx context.Context, id int64, p model.Participant) (service.JoinResult, error)
}

// JoinHandler answers presses of the join button under an announcement.
type JoinHandler struct {
	giveaways Joiner
}

// NewJoinHandler creates a new JoinHandler.
func NewJoinHandler(giveaways Joiner) *JoinHandler {
	return &JoinHandler{giveaways: giveaways}
}

// HandleJoin handles a join_<id> callback and answers it with a short toast.
// Callbacks that are not join buttons are acknowledged without text.
func (h *JoinHandler) HandleJoin(c tele.Context) error {
	callback := c.Callback()
	sender := c.Sender()
	if callback == nil || sender == nil {
		return nil
	}

	id, ok := announce.DecodeJoin(callback.Data)
	if !ok {
		log.Debug().Str("data", callback.Data).Msg("Ignoring unknown callback")
		return c.Respond()
	}

	result, err := h.giveaways.Join(context.Background(), id, model.Participant{
		UserID:      sender.ID,
		DisplayName: DisplayName(sender),
	})
	if err != nil {
		log.Error().Err(err).Int64("giveaway_id", id).Int64("user_id", sender.ID).Msg("Failed to join giveaway")
		return c.Respond(&tele.CallbackResponse{Text: announce.AnswerTryAgain})
	}

	return c.Respond(&tele.CallbackResponse{Text: joinAnswer(result)})
}

func joinAnswer(result service.JoinResult) string {
	switch result {
	case service.JoinAccepted:
		return announce.AnswerJoined
	case service.JoinAlreadyJoined:
		return announce.AnswerAlreadyJoined
	case service.JoinClosed:
		return announce.AnswerClosed
	default:
		return announce.AnswerNotFound
	}
}

// DisplayName returns the user's username, falling back to the first name and then the id.
func DisplayName(u *tele.User) string {
	switch {
	case u.Username != "":
		return u.Username
	case u.FirstName != "":
		return u.FirstName
	default:
		return strconv.FormatInt(u.ID, 10)
	}
}
