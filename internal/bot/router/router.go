// Package router dispatches whatsmeow events: poll creations and updates go
// to the poll pipeline, media to the media saver, history syncs are replayed
// through the same paths and connection events drive health and reconnects.
package router

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/dmitrijs2005/pollwatch/internal/bot/metrics"
	"github.com/dmitrijs2005/pollwatch/internal/bot/models"
	"github.com/dmitrijs2005/pollwatch/internal/bot/pollvote"
	"github.com/dmitrijs2005/pollwatch/internal/common"
	"github.com/dmitrijs2005/pollwatch/internal/logging"
)

type PollPipeline interface {
	RecordCreation(ctx context.Context, c *models.PollCreation) error
	HandlePollUpdate(ctx context.Context, evt *events.Message) error
}

type MediaSaver interface {
	Save(ctx context.Context, info types.MessageInfo, msg *waE2E.Message) (string, error)
}

// HistoryParser turns history-sync entries into message events.
// *whatsmeow.Client satisfies it.
type HistoryParser interface {
	ParseWebMessage(chatJID types.JID, webMsg *waWeb.WebMessageInfo) (*events.Message, error)
}

type Health interface {
	SetWhatsApp(connected bool)
	SetStorage(ok bool)
}

// Deps bundles the collaborators of a Router.
type Deps struct {
	Polls   PollPipeline
	Media   MediaSaver
	History HistoryParser
	Health  Health
	// Reconnect dials again after a disconnect. It should block until
	// connected or ctx ends.
	Reconnect func(ctx context.Context) error
	// LoggedOut is called once when the account is unlinked.
	LoggedOut func()
	Self      func() types.JID
	Logger    logging.Logger
	Metrics   *metrics.Metrics
}

type Router struct {
	allowed map[types.JID]struct{}
	deps    Deps
	logger  logging.Logger

	halted       atomic.Bool
	reconnecting atomic.Bool
}

// New builds a router accepting events from the given group JIDs only.
func New(groups []types.JID, d Deps) *Router {
	allowed := make(map[types.JID]struct{}, len(groups))
	for _, g := range groups {
		allowed[g.ToNonAD()] = struct{}{}
	}
	if d.Self == nil {
		d.Self = func() types.JID { return types.EmptyJID }
	}
	return &Router{allowed: allowed, deps: d, logger: d.Logger.With("module", "router")}
}

// Handler returns the callback to register with AddEventHandler. ctx bounds
// the work started for every event.
func (r *Router) Handler(ctx context.Context) func(evt any) {
	return func(evt any) { r.Handle(ctx, evt) }
}

func (r *Router) Allowed(chat types.JID) bool {
	_, ok := r.allowed[chat.ToNonAD()]
	return ok
}

// Halted reports whether the account was logged out.
func (r *Router) Halted() bool {
	return r.halted.Load()
}

func (r *Router) Handle(ctx context.Context, evt any) {
	ctx = logging.ContextWith(ctx, "trace_id", uuid.NewString())

	switch v := evt.(type) {
	case *events.Message:
		r.deps.Metrics.Event("message")
		r.handleMessage(ctx, v)
	case *events.HistorySync:
		r.deps.Metrics.Event("history_sync")
		r.handleHistory(ctx, v)
	case *events.Connected:
		r.deps.Metrics.Event("connected")
		r.logger.Info(ctx, "connected to WhatsApp")
		r.deps.Health.SetWhatsApp(true)
	case *events.Disconnected:
		r.deps.Metrics.Event("disconnected")
		r.deps.Health.SetWhatsApp(false)
		r.reconnect(ctx)
	case *events.LoggedOut:
		r.deps.Metrics.Event("logged_out")
		r.deps.Health.SetWhatsApp(false)
		if r.halted.CompareAndSwap(false, true) {
			r.logger.Error(ctx, "logged out of WhatsApp, halting", "reason", v.Reason.String(), "on_connect", v.OnConnect)
			if r.deps.LoggedOut != nil {
				r.deps.LoggedOut()
			}
		}
	}
}

func (r *Router) reconnect(ctx context.Context) {
	if r.halted.Load() || r.deps.Reconnect == nil {
		return
	}
	if !r.reconnecting.CompareAndSwap(false, true) {
		return
	}

	r.logger.Warn(ctx, "disconnected from WhatsApp, reconnecting")
	go func() {
		defer r.reconnecting.Store(false)
		if err := r.deps.Reconnect(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error(ctx, "reconnect failed", "error", err)
		}
	}()
}

func (r *Router) handleMessage(ctx context.Context, evt *events.Message) {
	if !r.Allowed(evt.Info.Chat) {
		r.logger.Debug(ctx, "ignoring message from chat outside the allow-list", "chat", evt.Info.Chat.String())
		return
	}
	ctx = logging.ContextWith(ctx, "chat", evt.Info.Chat.String(), "message_id", evt.Info.ID)

	if c := pollvote.CreationFromMessage(evt.Info, evt.Message, r.deps.Self()); c != nil {
		r.storage(ctx, r.deps.Polls.RecordCreation(ctx, c))
		return
	}

	if evt.Message.GetPollUpdateMessage() != nil {
		r.storage(ctx, r.deps.Polls.HandlePollUpdate(ctx, evt))
		return
	}

	if r.deps.Media == nil {
		return
	}
	if _, err := r.deps.Media.Save(ctx, evt.Info, evt.Message); err != nil && !errors.Is(err, common.ErrUnsupportedMedia) {
		r.logger.Warn(ctx, "media not saved", "error", err)
	}
}

// storage reports the outcome of a storage-backed step to the log and health.
func (r *Router) storage(ctx context.Context, err error) {
	if err != nil {
		r.logger.Error(ctx, "storage failure", "error", err)
		r.deps.Health.SetStorage(false)
		return
	}
	r.deps.Health.SetStorage(true)
}

func (r *Router) handleHistory(ctx context.Context, evt *events.HistorySync) {
	var batch []*events.Message

	for _, conv := range evt.Data.GetConversations() {
		chat, err := types.ParseJID(conv.GetID())
		if err != nil || !r.Allowed(chat) {
			continue
		}

		for _, hm := range conv.GetMessages() {
			msg, err := r.deps.History.ParseWebMessage(chat, hm.GetMessage())
			if err != nil {
				r.logger.Warn(ctx, "skipping unparsable history message", "chat", chat.String(), "error", err)
				continue
			}
			batch = append(batch, msg)
		}
	}

	if len(batch) == 0 {
		return
	}

	orderHistory(batch)
	r.logger.Info(ctx, "replaying history", "messages", len(batch))

	for _, msg := range batch {
		r.handleMessage(ctx, msg)
	}
}

// orderHistory sorts oldest first, with poll creations ahead of everything
// else so updates never precede the poll they vote on.
func orderHistory(batch []*events.Message) {
	sort.SliceStable(batch, func(i, j int) bool {
		ci := pollvote.PollCreationOf(batch[i].Message) != nil
		cj := pollvote.PollCreationOf(batch[j].Message) != nil
		if ci != cj {
			return ci
		}
		return batch[i].Info.Timestamp.Before(batch[j].Info.Timestamp)
	})
}
