// Package tally turns decrypted poll votes into per-option voter sets and
// merges those sets into stored poll records.
package tally

import (
	"encoding/hex"
	"sort"

	"go.mau.fi/whatsmeow"

	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
)

// hashOptions maps option labels to the SHA-256 hashes WhatsApp puts in
// encrypted votes.
var hashOptions = whatsmeow.HashPollOptions

// Report describes what Aggregate saw besides the tally itself.
type Report struct {
	// Voters is the number of distinct voters whose latest vote was applied.
	Voters int
	// Withdrawn counts voters whose latest vote selects nothing.
	Withdrawn int
	// UnknownHashes counts selected hashes that match no option.
	UnknownHashes int
}

// Aggregate recomputes the tally of a poll by replaying every known vote
// against its creation message. For each voter only the most recent vote
// counts; on equal timestamps the one later in votes wins.
func Aggregate(creation *models.PollCreation, votes []models.Vote) (models.Tally, Report) {
	var report Report

	hashes := hashOptions(creation.Options)
	index := make(map[string]int, len(hashes))
	t := make(models.Tally, len(creation.Options))
	for i, name := range creation.Options {
		t[i] = models.OptionTally{Name: name, Hash: hashes[i], Voters: []string{}}
		key := hex.EncodeToString(hashes[i])
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	ordered := make([]models.Vote, len(votes))
	copy(ordered, votes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	latest := make(map[string]models.Vote, len(ordered))
	for _, v := range ordered {
		latest[v.VoterJID] = v
	}

	voters := make([]string, 0, len(latest))
	for voter := range latest {
		voters = append(voters, voter)
	}
	sort.Strings(voters)

	for _, voter := range voters {
		v := latest[voter]
		if len(v.SelectedHashes) == 0 {
			report.Withdrawn++
			continue
		}
		report.Voters++

		seen := make(map[int]struct{}, len(v.SelectedHashes))
		for _, h := range v.SelectedHashes {
			i, ok := index[hex.EncodeToString(h)]
			if !ok {
				report.UnknownHashes++
				continue
			}
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			t[i].Voters = append(t[i].Voters, voter)
		}
	}

	return t, report
}
