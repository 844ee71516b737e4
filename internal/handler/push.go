package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/push"
	"github.com/dukerupert/chorely/internal/store"
)

// PushSender is the part of push.Service the handler uses.
type PushSender interface {
	push.Sender
	VAPIDPublicKey() string
}

var notificationTypes = []string{model.NotifTypeTaskPending, model.NotifTypeTaskUpcoming}

// PushHandler manages the acting member's devices and preferences. Every
// route expects middleware.RequireMember in front of it.
type PushHandler struct {
	pushStore *store.PushStore
	sender    PushSender
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, sender PushSender, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, sender: sender, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	memberID := auth.MemberID(r.Context())

	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}

	sub, err := h.pushStore.CreateSubscription(r.Context(), memberID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}. Another member's
// device reads as not found.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	sub, err := h.pushStore.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to get subscription")
		return
	}
	if sub == nil || sub.MemberID != auth.MemberID(r.Context()) {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}

	if err := h.pushStore.DeleteSubscription(r.Context(), id); err != nil {
		writeDomainError(w, h.logger, err, "failed to delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByMember(r.Context(), auth.MemberID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.sender.VAPIDPublicKey()})
}

type prefItem struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

func (h *PushHandler) preferences(r *http.Request) ([]prefItem, error) {
	memberID := auth.MemberID(r.Context())
	out := make([]prefItem, 0, len(notificationTypes))
	for _, t := range notificationTypes {
		enabled, err := h.pushStore.IsPreferenceEnabled(r.Context(), memberID, t)
		if err != nil {
			return nil, err
		}
		out = append(out, prefItem{Type: t, Enabled: enabled})
	}
	return out, nil
}

// GetPreferences handles GET /api/push/preferences. Types never set read
// as enabled.
func (h *PushHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.preferences(r)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// UpdatePreferences handles PUT /api/push/preferences
func (h *PushHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preferences []prefItem `json:"preferences"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	for _, p := range req.Preferences {
		if !slices.Contains(notificationTypes, p.Type) {
			writeError(w, http.StatusBadRequest, "unknown notification type "+p.Type)
			return
		}
	}

	memberID := auth.MemberID(r.Context())
	for _, p := range req.Preferences {
		if err := h.pushStore.SetPreference(r.Context(), memberID, p.Type, p.Enabled); err != nil {
			writeDomainError(w, h.logger, err, "failed to update preferences")
			return
		}
	}

	h.GetPreferences(w, r)
}

// TestNotification handles POST /api/push/test
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByMember(r.Context(), auth.MemberID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to list subscriptions")
		return
	}

	payload := push.SamplePayload()

	sent := 0
	for _, sub := range subs {
		err := h.sender.Send(r.Context(), &sub, payload)
		switch {
		case errors.Is(err, push.ErrExpired):
			if err := h.pushStore.DeleteByEndpoint(r.Context(), sub.Endpoint); err != nil {
				h.logger.Error("delete expired subscription", "error", err)
			}
		case err != nil:
			h.logger.Error("test push send", "subscription_id", sub.ID, "error", err)
		default:
			sent++
		}
	}

	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
