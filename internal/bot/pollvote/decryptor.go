// Package pollvote turns encrypted poll-update messages into decrypted votes
// and extracts poll-creation messages for the creation cache.
package pollvote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
	"github.com/dmitrijs2005/pollwatch/internal/common"
)

// VoteDecrypter is the part of *whatsmeow.Client used here.
type VoteDecrypter interface {
	DecryptPollVote(ctx context.Context, vote *events.Message) (*waE2E.PollVoteMessage, error)
}

// CreationLookup resolves cached poll-creation messages.
type CreationLookup interface {
	Get(ctx context.Context, chatJID, messageID string) (*models.PollCreation, error)
}

// Decryptor resolves poll updates to votes. It does not write any state.
type Decryptor struct {
	client    VoteDecrypter
	creations CreationLookup
	self      func() types.JID
}

// NewDecryptor builds a Decryptor. self returns the account's own JID and is
// consulted lazily because it is only known after pairing.
func NewDecryptor(client VoteDecrypter, creations CreationLookup, self func() types.JID) *Decryptor {
	return &Decryptor{client: client, creations: creations, self: self}
}

// Decrypt returns the vote carried by evt together with the creation message
// it refers to.
//
// Errors: common.ErrNotPollUpdate when evt is no poll update,
// common.ErrCreationNotFound when the creation is unknown and
// common.ErrDecryptFailed when whatsmeow cannot decrypt the payload. Storage
// failures while looking up the creation are returned as is.
func (d *Decryptor) Decrypt(ctx context.Context, evt *events.Message) (*models.Vote, *models.PollCreation, error) {
	update := evt.Message.GetPollUpdateMessage()
	if update == nil {
		return nil, nil, common.ErrNotPollUpdate
	}

	key := update.GetPollCreationMessageKey()
	if key.GetID() == "" {
		return nil, nil, fmt.Errorf("%w: update %s has no creation key", common.ErrCreationNotFound, evt.Info.ID)
	}

	chat := evt.Info.Chat.ToNonAD()
	creation, err := d.creations.Get(ctx, chat.String(), key.GetID())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: poll %s in %s", common.ErrCreationNotFound, key.GetID(), chat)
		}
		return nil, nil, fmt.Errorf("lookup poll creation %s: %w", key.GetID(), err)
	}

	decrypted, err := d.client.DecryptPollVote(ctx, evt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: update %s: %v", common.ErrDecryptFailed, evt.Info.ID, err)
	}

	vote := &models.Vote{
		PollID:          key.GetID(),
		ChatJID:         chat.String(),
		UpdateMessageID: evt.Info.ID,
		VoterJID:        authorOf(evt.Info, d.selfJID()).String(),
		CreatorJID:      KeyAuthor(key, chat, d.selfJID()).String(),
		SelectedHashes:  decrypted.GetSelectedOptions(),
		Timestamp:       sentAt(update, evt.Info.Timestamp),
	}

	return vote, creation, nil
}

func (d *Decryptor) selfJID() types.JID {
	if d.self == nil {
		return types.EmptyJID
	}
	return d.self()
}

// KeyAuthor resolves who sent the message a key points at: the own account
// when FromMe is set, else the group participant, else the remote JID.
func KeyAuthor(key *waCommon.MessageKey, chat, self types.JID) types.JID {
	if key.GetFromMe() {
		return self.ToNonAD()
	}
	if p := key.GetParticipant(); p != "" {
		if jid, err := types.ParseJID(p); err == nil {
			return jid.ToNonAD()
		}
	}
	if r := key.GetRemoteJID(); r != "" {
		if jid, err := types.ParseJID(r); err == nil {
			return jid.ToNonAD()
		}
	}
	return chat.ToNonAD()
}

func authorOf(info types.MessageInfo, self types.JID) types.JID {
	if info.IsFromMe && !self.IsEmpty() {
		return self.ToNonAD()
	}
	return info.Sender.ToNonAD()
}

// sentAt prefers the millisecond sender timestamp of the update over the
// second-resolution envelope time.
func sentAt(update *waE2E.PollUpdateMessage, fallback time.Time) time.Time {
	if ms := update.GetSenderTimestampMS(); ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	return fallback.UTC()
}
