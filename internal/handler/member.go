package handler

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/store"
	"github.com/dukerupert/chorely/internal/websocket"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const (
	defaultColor  = "#3B82F6"
	defaultAvatar = "😀"
)

type MemberHandler struct {
	store  *store.MemberStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewMemberHandler(s *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{store: s, hub: hub, logger: logger}
}

func (h *MemberHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type memberRequest struct {
	Name        string     `json:"name"`
	Role        model.Role `json:"role"`
	Color       string     `json:"color"`
	AvatarEmoji string     `json:"avatar_emoji"`
}

// normalize fills defaults from existing (nil on create) and reports the
// first problem with the request.
func (req *memberRequest) normalize(existing *model.Member) string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}

	if req.Role == "" {
		req.Role = model.RoleOther
		if existing != nil {
			req.Role = existing.Role
		}
	}
	if !req.Role.Valid() {
		return "role must be parent, child or other"
	}

	if req.Color == "" {
		req.Color = defaultColor
		if existing != nil {
			req.Color = existing.Color
		}
	}
	if !hexColorRegexp.MatchString(req.Color) {
		return "color must be a hex color (e.g. #FF0000)"
	}

	if req.AvatarEmoji == "" {
		req.AvatarEmoji = defaultAvatar
		if existing != nil {
			req.AvatarEmoji = existing.AvatarEmoji
		}
	}
	return ""
}

// List handles GET /api/members.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.List(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to list members")
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

// Create handles POST /api/members.
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.normalize(nil); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	exists, err := h.store.NameExists(r.Context(), req.Name, 0)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to check name")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "a member with that name already exists")
		return
	}

	member, err := h.store.Create(r.Context(), req.Name, req.Role, req.Color, req.AvatarEmoji)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to create member")
		return
	}

	h.broadcast(websocket.NewMessage("member", "created", member.ID, nil))
	writeJSON(w, http.StatusCreated, member)
}

// Update handles PUT /api/members/{id}.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to get member")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.normalize(existing); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	exists, err := h.store.NameExists(r.Context(), req.Name, id)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to check name")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "a member with that name already exists")
		return
	}

	member, err := h.store.Update(r.Context(), id, req.Name, req.Role, req.Color, req.AvatarEmoji)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to update member")
		return
	}

	h.broadcast(websocket.NewMessage("member", "updated", member.ID, nil))
	writeJSON(w, http.StatusOK, member)
}

// Delete handles DELETE /api/members/{id}. Members with task history are
// kept and the request fails with 409.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeDomainError(w, h.logger, err, "failed to delete member")
		return
	}

	h.broadcast(websocket.NewMessage("member", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// UpdateSortOrder handles PUT /api/members/sort.
func (h *MemberHandler) UpdateSortOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	if err := h.store.UpdateSortOrder(r.Context(), req.IDs); err != nil {
		writeDomainError(w, h.logger, err, "failed to update sort order")
		return
	}

	h.broadcast(websocket.NewMessage("member", "reordered", 0, nil))
	w.WriteHeader(http.StatusNoContent)
}
