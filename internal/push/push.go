// Package push delivers chore reminders to members' devices over Web Push.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/chorely/internal/assignment"
	"github.com/dukerupert/chorely/internal/model"
)

// ErrExpired is returned when the push service no longer knows the
// subscription (404 or 410). Callers drop the subscription.
var ErrExpired = errors.New("push subscription expired")

const (
	defaultTTL        = 24 * time.Hour
	defaultSubscriber = "mailto:noreply@chorely.local"
)

// Payload is the JSON the service worker receives. TTL and Urgency are
// delivery hints for the push service and are not serialized.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`

	TTL     time.Duration   `json:"-"`
	Urgency webpush.Urgency `json:"-"`
}

// UpcomingReminder announces a task shortly before its window opens. The
// reminder is useless once the task has started, so it expires then.
func UpcomingReminder(it assignment.Item, until time.Duration) Payload {
	ref := itemRef(it)
	if until < time.Minute {
		until = time.Minute
	}
	return Payload{
		Title:   "Coming up",
		Body:    fmt.Sprintf("%s starts at %s", itemName(it), it.Definition.TimeRange.Start),
		URL:     "/",
		Tag:     "task-upcoming-" + ref,
		TTL:     until,
		Urgency: webpush.UrgencyHigh,
	}
}

// PendingDigest summarizes a member's open tasks for the day. It expires at
// the end of that day.
func PendingDigest(items []assignment.Item, now time.Time, loc *time.Location) Payload {
	body := fmt.Sprintf("You have %d chores to do today", len(items))
	if len(items) == 1 {
		body = "Chore due today: " + itemName(items[0])
	}
	local := now.In(loc)
	endOfDay := model.DateOf(local).AddDays(1).In(loc)
	return Payload{
		Title:   "Today's chores",
		Body:    body,
		URL:     "/",
		Tag:     "task-pending",
		TTL:     endOfDay.Sub(local),
		Urgency: webpush.UrgencyNormal,
	}
}

// SamplePayload is the test notification a member sends to confirm delivery.
func SamplePayload() Payload {
	return Payload{
		Title:   "Test Notification",
		Body:    "Push notifications are working!",
		URL:     "/",
		Tag:     "test",
		TTL:     time.Hour,
		Urgency: webpush.UrgencyNormal,
	}
}

// itemName prefers the frozen snapshot name over the live definition.
func itemName(it assignment.Item) string {
	if it.Execution != nil && it.Execution.Snapshot != nil {
		return it.Execution.Snapshot.Name
	}
	return it.Definition.Name
}

func itemRef(it assignment.Item) string {
	return fmt.Sprintf("%d:%s", it.Definition.ID, it.Date)
}

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

func (c Config) Enabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// Service signs and sends notifications with the household's VAPID keys.
type Service struct {
	cfg    Config
	client *http.Client
}

// NewService creates a Service that signs pushes with the VAPID keys in cfg.
func NewService(cfg Config) *Service {
	if cfg.Subscriber == "" {
		cfg.Subscriber = defaultSubscriber
	}
	return &Service{cfg: cfg, client: http.DefaultClient}
}

// VAPIDPublicKey is handed to browsers so they can subscribe.
func (s *Service) VAPIDPublicKey() string {
	return s.cfg.VAPIDPublicKey
}

// Send encrypts payload for one device and posts it to the device's push
// service.
func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	ttl := payload.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	urgency := payload.Urgency
	if urgency == "" {
		urgency = webpush.UrgencyNormal
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dhKey, Auth: sub.AuthKey},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             int(ttl / time.Second),
		Urgency:         urgency,
	})
	if err != nil {
		return fmt.Errorf("send push to subscription %d: %w", sub.ID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d for subscription %d", resp.StatusCode, sub.ID)
	}
	return nil
}

// GenerateVAPIDKeys returns a fresh base64url encoded VAPID key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}
