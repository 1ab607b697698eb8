// Package models holds the bot's domain types: poll records, decrypted votes,
// cached poll-creation messages and computed tallies.
package models

import "time"

// Poll is the persisted result of a WhatsApp poll.
//
// Votes is index-aligned with the options of the poll-creation message.
type Poll struct {
	PollID    string        `json:"pollId" bson:"pollId"`
	ChatJID   string        `json:"chatJid" bson:"chatJid"`
	Question  string        `json:"question" bson:"question"`
	Votes     []OptionVotes `json:"votes" bson:"votes"`
	UpdatedAt time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// OptionVotes lists the voters currently recorded for one option.
type OptionVotes struct {
	Name   string   `json:"name" bson:"name"`
	Voters []string `json:"voters" bson:"voters"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	c := *p
	c.Votes = make([]OptionVotes, len(p.Votes))
	for i, ov := range p.Votes {
		c.Votes[i] = OptionVotes{Name: ov.Name}
		if ov.Voters != nil {
			c.Votes[i].Voters = make([]string, len(ov.Voters))
			copy(c.Votes[i].Voters, ov.Voters)
		}
	}
	return &c
}

// PollCreation is the cached content of a poll-creation message. It supplies
// the question and the option labels the vote hashes are mapped back to.
type PollCreation struct {
	ChatJID    string    `bson:"chatJid"`
	MessageID  string    `bson:"messageId"`
	CreatorJID string    `bson:"creatorJid"`
	Question   string    `bson:"question"`
	Options    []string  `bson:"options"`
	CreatedAt  time.Time `bson:"createdAt"`
}

// Vote is one decrypted poll update: the full selection of a voter at
// Timestamp. An empty selection means the voter withdrew.
type Vote struct {
	PollID          string    `bson:"pollId"`
	ChatJID         string    `bson:"chatJid"`
	UpdateMessageID string    `bson:"updateMessageId"`
	VoterJID        string    `bson:"voterJid"`
	CreatorJID      string    `bson:"creatorJid"`
	SelectedHashes  [][]byte  `bson:"selectedHashes"`
	Timestamp       time.Time `bson:"sentAt"`
}

// OptionTally is the computed voter set of one option.
type OptionTally struct {
	Name   string
	Hash   []byte
	Voters []string
}

// Tally is the aggregate of all votes for a poll, aligned to its options.
type Tally []OptionTally
