package pollvote

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
)

// PollCreationOf returns the poll definition inside msg, whichever of the
// three creation message versions carries it.
func PollCreationOf(msg *waE2E.Message) *waE2E.PollCreationMessage {
	switch {
	case msg.GetPollCreationMessage() != nil:
		return msg.GetPollCreationMessage()
	case msg.GetPollCreationMessageV2() != nil:
		return msg.GetPollCreationMessageV2()
	case msg.GetPollCreationMessageV3() != nil:
		return msg.GetPollCreationMessageV3()
	}
	return nil
}

// CreationFromMessage builds the cache entry for a poll-creation message, or
// returns nil when msg creates no poll.
func CreationFromMessage(info types.MessageInfo, msg *waE2E.Message, self types.JID) *models.PollCreation {
	poll := PollCreationOf(msg)
	if poll == nil {
		return nil
	}

	options := make([]string, 0, len(poll.GetOptions()))
	for _, o := range poll.GetOptions() {
		options = append(options, o.GetOptionName())
	}

	return &models.PollCreation{
		ChatJID:    info.Chat.ToNonAD().String(),
		MessageID:  info.ID,
		CreatorJID: authorOf(info, self).String(),
		Question:   poll.GetName(),
		Options:    options,
		CreatedAt:  info.Timestamp.UTC(),
	}
}
