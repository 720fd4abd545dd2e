package announce

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"
)

const (
	// JoinPrefix is the prefix of join button callback data.
	JoinPrefix = "join_"

	// JoinButtonText is the label of the join button.
	JoinButtonText = "🎁 Join Giveaway"
)

// EncodeJoin encodes a giveaway id into join callback data.
func EncodeJoin(id int64) string {
	return JoinPrefix + strconv.FormatInt(id, 10)
}

// DecodeJoin extracts the giveaway id from join callback data.
// Telebot may prefix raw callback data with "\f"; it is ignored.
func DecodeJoin(data string) (int64, bool) {
	data = strings.TrimPrefix(strings.TrimSpace(data), "\f")
	if !strings.HasPrefix(data, JoinPrefix) {
		return 0, false
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(data, JoinPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// JoinKeyboard builds the inline keyboard attached to a creation announcement.
func JoinKeyboard(id int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = [][]tele.InlineButton{
		{
			{
				Text: JoinButtonText,
				Data: EncodeJoin(id),
			},
		},
	}
	return markup
}
