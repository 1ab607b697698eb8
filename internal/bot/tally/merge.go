package tally

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
)

// Policy selects how a fresh tally is combined with a stored poll.
type Policy string

const (
	// Replace overwrites each option's voters with the fresh tally, so a
	// revote moves the voter between options.
	Replace Policy = "replace"
	// Accumulate unions the fresh voters into the stored ones and never
	// removes a voter. Kept for compatibility with existing poll records.
	Accumulate Policy = "accumulate"
)

// ParsePolicy validates a textual merge policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case Replace, Accumulate:
		return p, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q (want %q or %q)", s, Replace, Accumulate)
	}
}

// MergeResult is the outcome of Merge.
type MergeResult struct {
	Poll    *models.Poll
	Created bool
	// ExcessOptions is the difference in option count between the stored
	// poll and the tally. Options beyond the shorter side are left untouched.
	ExcessOptions int
}

// Merge combines t into existing (which may be nil) and returns the record to
// write. existing is never modified. The question of an existing record is
// kept as stored.
func Merge(existing *models.Poll, pollID, chatJID, question string, t models.Tally, policy Policy, now time.Time) MergeResult {
	if existing == nil {
		p := &models.Poll{
			PollID:    pollID,
			ChatJID:   chatJID,
			Question:  question,
			Votes:     make([]models.OptionVotes, len(t)),
			UpdatedAt: now,
		}
		for i, ot := range t {
			p.Votes[i] = models.OptionVotes{Name: ot.Name, Voters: union(nil, ot.Voters)}
		}
		return MergeResult{Poll: p, Created: true}
	}

	p := existing.Clone()
	if p.Question == "" {
		p.Question = question
	}
	if p.ChatJID == "" {
		p.ChatJID = chatJID
	}
	p.UpdatedAt = now

	n := min(len(p.Votes), len(t))
	for i := 0; i < n; i++ {
		if p.Votes[i].Name == "" {
			p.Votes[i].Name = t[i].Name
		}
		switch policy {
		case Accumulate:
			p.Votes[i].Voters = union(p.Votes[i].Voters, t[i].Voters)
		default:
			p.Votes[i].Voters = union(nil, t[i].Voters)
		}
	}

	excess := len(p.Votes) - len(t)
	if excess < 0 {
		excess = -excess
	}

	return MergeResult{Poll: p, ExcessOptions: excess}
}

// union returns the distinct members of base and add sorted by JID, the
// same order a Tally uses. The result is never nil.
func union(base, add []string) []string {
	out := make([]string, 0, len(base)+len(add))
	seen := make(map[string]struct{}, len(base)+len(add))
	for _, list := range [][]string{base, add} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
