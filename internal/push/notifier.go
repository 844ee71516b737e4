package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/chorely/internal/assignment"
	"github.com/dukerupert/chorely/internal/clock"
	"github.com/dukerupert/chorely/internal/model"
)

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// SubscriptionStore is the slice of the push store the notifier needs.
type SubscriptionStore interface {
	ListByMember(ctx context.Context, memberID int64) ([]model.PushSubscription, error)
	IsPreferenceEnabled(ctx context.Context, memberID int64, notifType string) (bool, error)
	RecordSent(ctx context.Context, memberID int64, notifType, refID string) (bool, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	CleanupSent(ctx context.Context, before time.Time) error
}

// TaskResolver answers which tasks concern which member.
type TaskResolver interface {
	Pending(ctx context.Context, date model.Date) (assignment.Assignments, error)
	Upcoming(ctx context.Context, w assignment.Window) (assignment.Assignments, error)
}

type NotifierConfig struct {
	Interval   time.Duration
	LeadTime   time.Duration
	DigestHour int
	Location   *time.Location
	SentMaxAge time.Duration
}

func (c NotifierConfig) withDefaults() NotifierConfig {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.LeadTime <= 0 {
		c.LeadTime = 15 * time.Minute
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.SentMaxAge <= 0 {
		c.SentMaxAge = 7 * 24 * time.Hour
	}
	return c
}

// Notifier periodically sends two kinds of reminders: a morning digest of
// each member's pending tasks, and a heads-up shortly before a task's
// window opens. Each reminder is sent at most once per member.
type Notifier struct {
	mu       sync.RWMutex
	sender   Sender
	subs     SubscriptionStore
	resolver TaskResolver
	clock    clock.Clock
	cfg      NotifierConfig
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewNotifier(sender Sender, subs SubscriptionStore, resolver TaskResolver, c clock.Clock, cfg NotifierConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		subs:     subs,
		resolver: resolver,
		clock:    c,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Start begins the notifier loop.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	n.mu.Unlock()

	go func() {
		defer close(n.done)
		ticker := time.NewTicker(n.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the current tick to finish.
func (n *Notifier) Stop() {
	n.mu.RLock()
	cancel := n.cancel
	done := n.done
	n.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (n *Notifier) tick(ctx context.Context) {
	now := n.clock.Now()
	n.checkUpcoming(ctx, now)
	n.checkDigest(ctx, now)

	if now.In(n.cfg.Location).Minute() == 0 {
		if err := n.subs.CleanupSent(ctx, now.Add(-n.cfg.SentMaxAge)); err != nil {
			n.logger.Error("cleanup sent notifications", "error", err)
		}
	}
}

func (n *Notifier) checkUpcoming(ctx context.Context, now time.Time) {
	w := assignment.Window{Start: now, End: now.Add(n.cfg.LeadTime)}
	byMember, err := n.resolver.Upcoming(ctx, w)
	if err != nil {
		n.logger.Error("resolve upcoming tasks", "error", err)
		return
	}

	for memberID, items := range byMember {
		for _, it := range items {
			until := it.Start(n.cfg.Location).Sub(now)
			n.notify(ctx, memberID, model.NotifTypeTaskUpcoming, itemRef(it), UpcomingReminder(it, until))
		}
	}
}

func (n *Notifier) checkDigest(ctx context.Context, now time.Time) {
	local := now.In(n.cfg.Location)
	if local.Hour() < n.cfg.DigestHour {
		return
	}
	today := model.DateOf(local)

	byMember, err := n.resolver.Pending(ctx, today)
	if err != nil {
		n.logger.Error("resolve pending tasks", "error", err)
		return
	}

	for memberID, items := range byMember {
		if len(items) == 0 {
			continue
		}
		n.notify(ctx, memberID, model.NotifTypeTaskPending, "digest:"+today.String(), PendingDigest(items, now, n.cfg.Location))
	}
}

// notify sends payload to every device of memberID unless the member opted
// out or this reference was already sent.
func (n *Notifier) notify(ctx context.Context, memberID int64, notifType, ref string, payload Payload) {
	log := n.logger.With("member_id", memberID, "type", notifType, "ref", ref)

	enabled, err := n.subs.IsPreferenceEnabled(ctx, memberID, notifType)
	if err != nil {
		log.Error("check preference", "error", err)
		return
	}
	if !enabled {
		return
	}

	subs, err := n.subs.ListByMember(ctx, memberID)
	if err != nil {
		log.Error("list subscriptions", "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	claimed, err := n.subs.RecordSent(ctx, memberID, notifType, ref)
	if err != nil {
		log.Error("record sent", "error", err)
		return
	}
	if !claimed {
		return
	}

	for i := range subs {
		sub := &subs[i]
		err := n.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
			log.Debug("push sent", "subscription_id", sub.ID)
		case errors.Is(err, ErrExpired):
			if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				log.Error("delete expired subscription", "error", err)
			}
		default:
			log.Warn("send push", "subscription_id", sub.ID, "error", err)
		}
	}
}
