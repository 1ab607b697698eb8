package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/dmitrijs2005/pollwatch/internal/bot/metrics"
	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/repomanager"
	"github.com/dmitrijs2005/pollwatch/internal/bot/tally"
	"github.com/dmitrijs2005/pollwatch/internal/common"
	"github.com/dmitrijs2005/pollwatch/internal/logging"
)

// Decryptor resolves a poll-update event to a vote and its creation message.
type Decryptor interface {
	Decrypt(ctx context.Context, evt *events.Message) (*models.Vote, *models.PollCreation, error)
}

// RetryPolicy bounds how storage failures are retried.
type RetryPolicy struct {
	Retries uint64
	Base    time.Duration
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return retry.WithMaxRetries(p.Retries, retry.NewExponential(base))
}

// PollService owns the poll pipeline: caching creations, logging decrypted
// votes, recomputing tallies and merging them into poll records.
//
// Everything touching one poll runs under that poll's lock; different polls
// proceed in parallel.
type PollService struct {
	repomanager repomanager.RepositoryManager
	decryptor   Decryptor
	policy      tally.Policy
	retry       RetryPolicy
	logger      logging.Logger
	metrics     *metrics.Metrics
	locks       *keyLock
	now         func() time.Time
}

func NewPollService(rm repomanager.RepositoryManager, d Decryptor, policy tally.Policy, rp RetryPolicy, l logging.Logger, m *metrics.Metrics) *PollService {
	return &PollService{
		repomanager: rm,
		decryptor:   d,
		policy:      policy,
		retry:       rp,
		logger:      l.With("module", "poll_service"),
		metrics:     m,
		locks:       newKeyLock(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Get returns common.ErrNotFound for unknown polls.
func (s *PollService) Get(ctx context.Context, pollID string) (*models.Poll, error) {
	return s.repomanager.Polls().Get(ctx, pollID)
}

// Create stores a new poll record; common.ErrAlreadyExists if it exists.
func (s *PollService) Create(ctx context.Context, poll *models.Poll) (*models.Poll, error) {
	unlock := s.locks.Lock(poll.PollID)
	defer unlock()

	return s.repomanager.Polls().Create(ctx, poll)
}

// Merge folds a freshly computed tally into the stored record of pollID,
// creating the record when missing. It issues exactly one write.
func (s *PollService) Merge(ctx context.Context, pollID, chatJID, question string, t models.Tally) (*models.Poll, error) {
	unlock := s.locks.Lock(pollID)
	defer unlock()

	return s.mergeLocked(ctx, pollID, chatJID, question, t)
}

func (s *PollService) mergeLocked(ctx context.Context, pollID, chatJID, question string, t models.Tally) (*models.Poll, error) {
	existing, err := s.repomanager.Polls().Get(ctx, pollID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("load poll %s: %w", pollID, err)
	}

	res := tally.Merge(existing, pollID, chatJID, question, t, s.policy, s.now())
	if res.ExcessOptions > 0 {
		s.logger.Warn(ctx, "option count differs between stored poll and tally",
			"poll_id", pollID, "stored", len(res.Poll.Votes), "tally", len(t), "excess", res.ExcessOptions)
	}

	if err := s.repomanager.Polls().Save(ctx, res.Poll); err != nil {
		return nil, fmt.Errorf("save poll %s: %w", pollID, err)
	}

	if res.Created {
		s.metrics.Merge("created")
	} else {
		s.metrics.Merge("updated")
	}
	return res.Poll, nil
}

// RecordCreation caches a poll-creation message for later votes.
func (s *PollService) RecordCreation(ctx context.Context, c *models.PollCreation) error {
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.repomanager.Creations().Save(ctx, c)
	})
	if err != nil {
		s.metrics.StorageError()
		return fmt.Errorf("save poll creation %s: %w", c.MessageID, err)
	}

	s.logger.Info(ctx, "poll creation cached",
		"poll_id", c.MessageID, "question", c.Question, "options", len(c.Options))
	return nil
}

// HandlePollUpdate runs one poll-update event through the pipeline:
// decrypt, append to the vote log, aggregate the whole log, merge.
//
// Updates whose creation is unknown or that fail to decrypt are logged and
// dropped with a nil error. Storage failures are retried and then returned.
func (s *PollService) HandlePollUpdate(ctx context.Context, evt *events.Message) error {
	start := time.Now()
	defer s.metrics.ObservePollUpdate(start)

	var (
		vote     *models.Vote
		creation *models.PollCreation
	)
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		vote, creation, err = s.decryptor.Decrypt(ctx, evt)
		return err
	})
	if err != nil {
		if common.IsSkippable(err) {
			s.skip(ctx, evt, err)
			return nil
		}
		s.metrics.StorageError()
		return err
	}

	unlock := s.locks.Lock(vote.PollID)
	defer unlock()

	var poll *models.Poll
	err = s.withRetry(ctx, func(ctx context.Context) error {
		inserted, err := s.repomanager.Votes().Append(ctx, vote)
		if err != nil {
			return fmt.Errorf("append vote: %w", err)
		}
		if !inserted {
			s.logger.Debug(ctx, "vote already logged, recomputing anyway",
				"poll_id", vote.PollID, "update_id", vote.UpdateMessageID)
		}

		logged, err := s.repomanager.Votes().ListByPoll(ctx, vote.PollID)
		if err != nil {
			return fmt.Errorf("list votes: %w", err)
		}

		t, report := tally.Aggregate(creation, logged)
		if report.UnknownHashes > 0 {
			s.logger.Warn(ctx, "votes reference unknown options",
				"poll_id", vote.PollID, "unknown", report.UnknownHashes)
		}

		poll, err = s.mergeLocked(ctx, vote.PollID, creation.ChatJID, creation.Question, t)
		return err
	})
	if err != nil {
		s.metrics.StorageError()
		return fmt.Errorf("poll %s: %w", vote.PollID, err)
	}

	s.metrics.VoteApplied()
	s.logger.Info(ctx, "poll updated",
		"poll_id", poll.PollID, "voter", vote.VoterJID, "selected", len(vote.SelectedHashes))
	return nil
}

func (s *PollService) skip(ctx context.Context, evt *events.Message, err error) {
	reason := "not_poll_update"
	switch {
	case errors.Is(err, common.ErrCreationNotFound):
		reason = "creation_not_found"
	case errors.Is(err, common.ErrDecryptFailed):
		reason = "decrypt_failed"
	}
	s.metrics.VoteSkipped(reason)
	s.logger.Warn(ctx, "poll update skipped", "update_id", evt.Info.ID, "reason", reason, "error", err)
}

// withRetry retries fn with exponential backoff unless the error is a
// per-event condition or the context is done.
func (s *PollService) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, s.retry.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || common.IsSkippable(err) || errors.Is(err, context.Canceled) {
			return err
		}
		return retry.RetryableError(err)
	})
}
