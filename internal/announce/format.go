// Package announce builds the channel messages, callback answers and the join
// keyboard for giveaways.
package announce

import (
	"fmt"
	"strings"

	"giveaway-bot/internal/model"
)

// Callback answers shown to a user pressing the join button.
const (
	AnswerJoined        = "✅ You joined the giveaway!"
	AnswerAlreadyJoined = "You already joined!"
	AnswerNotFound      = "Giveaway not found"
	AnswerClosed        = "⏰ This giveaway has ended"
	AnswerTryAgain      = "⚠️ Could not save your entry, please try again"
)

// markdownV2Special lists the characters MarkdownV2 requires escaped, inside
// and outside entities.
const markdownV2Special = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdown escapes user text for Telegram's MarkdownV2 parse mode.
func EscapeMarkdown(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownV2Special, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// DurationString formats seconds as "Xd Xh Xm Xs".
func DurationString(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := seconds / 86400
	h := seconds % 86400 / 3600
	m := seconds % 3600 / 60
	s := seconds % 60
	return fmt.Sprintf("%dd %dh %dm %ds", d, h, m, s)
}

// CreationText is the MarkdownV2 announcement posted when a giveaway starts.
func CreationText(g *model.Giveaway) string {
	return fmt.Sprintf(
		"🎉 *%s*\n\n"+
			"🏆 Prize: %s\n"+
			"🎯 Number of Winners: %d\n"+
			"⏳ Duration: %s\n\n"+
			"Click below to join the giveaway\\!",
		EscapeMarkdown(g.Title),
		EscapeMarkdown(g.Prize),
		g.WinnerCount,
		DurationString(g.DurationSeconds),
	)
}

// ResultsText is the plain-text channel message listing winners in draw order.
func ResultsText(g *model.Giveaway, winners []model.Participant) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 Giveaway \"%s\" has ended!\n\n🎉 Winners:\n", g.Title)
	writeWinners(&sb, winners)
	return sb.String()
}

// NoParticipantsText is the channel message for a giveaway nobody joined.
func NoParticipantsText(g *model.Giveaway) string {
	return fmt.Sprintf("❌ Giveaway \"%s\" ended with no participants.", g.Title)
}

// AdminWinnersText is the reply sent to the admin after /pickwinner.
func AdminWinnersText(g *model.Giveaway, winners []model.Participant) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 Winners for \"%s\":\n\n", g.Title)
	writeWinners(&sb, winners)
	return sb.String()
}

// ListText summarizes giveaways for the /giveaways admin command.
func ListText(giveaways []*model.Giveaway) string {
	if len(giveaways) == 0 {
		return "No giveaways yet."
	}

	var sb strings.Builder
	sb.WriteString("🎁 Giveaways:\n")
	for _, g := range giveaways {
		status := "🟢 open"
		if g.Status == model.StatusFinalized {
			status = "🏁 finalized"
		}
		fmt.Fprintf(&sb, "\n#%d \"%s\": %s, %d joined, %d winner(s), ends %s",
			g.ID, g.Title, status, len(g.Participants), g.WinnerCount,
			g.EndTime.UTC().Format("2006-01-02 15:04 MST"))
	}
	return sb.String()
}

// Mention renders a participant the way winners are listed.
func Mention(p model.Participant) string {
	return "@" + p.DisplayName
}

func writeWinners(sb *strings.Builder, winners []model.Participant) {
	for i, w := range winners {
		fmt.Fprintf(sb, "%d. %s\n", i+1, Mention(w))
	}
}
