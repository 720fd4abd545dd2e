package service

import (
	"context"

	"giveaway-bot/internal/model"
)

// Notifier delivers giveaway announcements to the channel.
type Notifier interface {
	// AnnounceCreation posts the giveaway with its join button and returns
	// a reference to the posted message.
	AnnounceCreation(ctx context.Context, g *model.Giveaway) (string, error)
	AnnounceResults(ctx context.Context, g *model.Giveaway, winners []model.Participant) error
	AnnounceNoParticipants(ctx context.Context, g *model.Giveaway) error
}
