package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/chorely/internal/assignment"
	"github.com/dukerupert/chorely/internal/clock"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/recurrence"
	"github.com/dukerupert/chorely/internal/store"
	"github.com/dukerupert/chorely/internal/websocket"
)

type DefinitionHandler struct {
	tasks   *store.TaskStore
	members *store.MemberStore
	hub     *websocket.Hub
	clock   clock.Clock
	loc     *time.Location
	logger  *slog.Logger
}

func NewDefinitionHandler(ts *store.TaskStore, ms *store.MemberStore, hub *websocket.Hub, c clock.Clock, loc *time.Location, logger *slog.Logger) *DefinitionHandler {
	return &DefinitionHandler{tasks: ts, members: ms, hub: hub, clock: c, loc: loc, logger: logger}
}

func (h *DefinitionHandler) broadcast(def *model.TaskDefinition, action string) {
	if h.hub == nil {
		return
	}
	msg := websocket.NewMessage("definition", action, def.ID, nil)
	if audience := assignment.Audience(*def, nil); audience != nil {
		msg = msg.For(audience...)
	}
	h.hub.Broadcast(msg)
}

type definitionRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	TimeRange   model.TimeRange    `json:"time_range"`
	Scope       model.Scope        `json:"scope"`
	OwnerID     *int64             `json:"owner_id"`
	Point       int                `json:"point"`
	Schedule    model.ScheduleSpec `json:"schedule"`
}

// definition turns the request into a definition, writing the error
// response itself when the request is unusable.
func (h *DefinitionHandler) definition(w http.ResponseWriter, r *http.Request) (model.TaskDefinition, bool) {
	var req definitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return model.TaskDefinition{}, false
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return model.TaskDefinition{}, false
	}
	if req.Scope == "" {
		req.Scope = model.ScopeFamily
		if req.OwnerID != nil {
			req.Scope = model.ScopePersonal
		}
	}

	schedule, err := req.Schedule.Schedule()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "schedule: "+err.Error())
		return model.TaskDefinition{}, false
	}

	if req.OwnerID != nil {
		owner, err := h.members.GetByID(r.Context(), *req.OwnerID)
		if err != nil {
			writeDomainError(w, h.logger, err, "failed to check owner")
			return model.TaskDefinition{}, false
		}
		if owner == nil {
			writeError(w, http.StatusBadRequest, "owner not found")
			return model.TaskDefinition{}, false
		}
	}

	return model.TaskDefinition{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		TimeRange:   req.TimeRange,
		Scope:       req.Scope,
		OwnerID:     req.OwnerID,
		Point:       req.Point,
		Schedule:    schedule,
	}, true
}

// Create handles POST /api/definitions.
func (h *DefinitionHandler) Create(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}

	created, err := h.tasks.Create(r.Context(), def)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to create definition")
		return
	}
	h.broadcast(created, "created")
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/definitions, optionally narrowed to ?owner_id=.
func (h *DefinitionHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryID(r, "owner_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner_id")
		return
	}

	var defs []model.TaskDefinition
	if ownerID != nil {
		defs, err = h.tasks.ListByOwner(r.Context(), *ownerID)
	} else {
		defs, err = h.tasks.ListActive(r.Context())
	}
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to list definitions")
		return
	}
	if defs == nil {
		defs = []model.TaskDefinition{}
	}
	writeJSON(w, http.StatusOK, defs)
}

type definitionDetail struct {
	Definition *model.TaskDefinition `json:"definition"`
	Summary    string                `json:"summary"`
	NextDue    *model.Date           `json:"next_due"`
}

// Get handles GET /api/definitions/{id}.
func (h *DefinitionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	def, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to get definition")
		return
	}
	if def == nil {
		writeError(w, http.StatusNotFound, "definition not found")
		return
	}

	detail := definitionDetail{Definition: def}
	if def.Schedule != nil {
		detail.Summary = recurrence.Describe(def.Schedule)
		if !def.Deleted {
			next, ok, err := recurrence.Next(def.Schedule, clock.Today(h.clock, h.loc))
			if err != nil {
				h.logger.Warn("next occurrence", "definition_id", def.ID, "error", err)
			} else if ok {
				detail.NextDue = &next
			}
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

// Update handles PUT /api/definitions/{id}. Executions already started keep
// the snapshot they took.
func (h *DefinitionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	def.ID = id

	updated, err := h.tasks.Update(r.Context(), def)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to update definition")
		return
	}
	h.broadcast(updated, "updated")
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/definitions/{id}.
func (h *DefinitionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	def, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to get definition")
		return
	}
	if def == nil || def.Deleted {
		writeError(w, http.StatusNotFound, "definition not found")
		return
	}

	if err := h.tasks.SoftDelete(r.Context(), id); err != nil {
		writeDomainError(w, h.logger, err, "failed to delete definition")
		return
	}
	h.broadcast(def, "deleted")
	w.WriteHeader(http.StatusNoContent)
}
